package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeFindUnused() string {
	return `Finds import bindings in Python modules that no code in the module can ever read.

USE WHEN:
- Cleaning up a module before review or after a refactor
- Checking whether an import is safe to delete
- Auditing a package for stale dependencies

INTERPRETING RESULTS:
- Each finding names the local binding, the imported name and the source module
- reason "never-referenced": nothing in the module reads the binding
- reason "shadowed-by-<kind>": the name is rebound (by an assignment, def, class or another import) before any read can see the import
- Names listed in __all__ count as used and are never reported
- Star imports and __future__ imports are never reported
- "# noqa" or "# noqa: F401" on the import line silences a finding
- notes list star imports and dynamic imports, which are left alone

METRICS RETURNED:
- Per-file: path, import count, findings with line, column and reason
- Summary: total files, files with unused imports, total imports, unused imports, counts by reason`
}

func describeFixUnused() string {
	return `Previews removal of unused imports from Python modules as a unified diff. Files are not modified.

USE WHEN:
- Deciding how to apply an unused-import cleanup
- Showing the exact edit before running "pyprune fix"
- Cleaning up a single file as part of a larger change

INTERPRETING RESULTS:
- Lines starting with "-" are removed, lines starting with "+" are the rewritten import
- A statement left without any names is deleted; a block left empty gets "pass"
- skipped entries are imports that were unused but could not be removed safely
- Apply the diff as-is or run "pyprune fix" on the same paths

METRICS RETURNED:
- Per-file: path, removed findings, skipped imports with reason, diff
- Summary: files changed, imports removed, imports skipped`
}
