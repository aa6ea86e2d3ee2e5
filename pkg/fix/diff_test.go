package fix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnifiedDiff(t *testing.T) {
	before := "import os\nimport sys\nfrom typing import List, Optional\n\nprint(os, Optional)\n"
	after := "import os\nfrom typing import Optional\n\nprint(os, Optional)\n"

	want := "--- a/app.py\n+++ b/app.py\n" +
		"@@ -1,5 +1,4 @@\n" +
		" import os\n" +
		"-import sys\n" +
		"-from typing import List, Optional\n" +
		"+from typing import Optional\n" +
		" \n" +
		" print(os, Optional)\n"
	assert.Equal(t, want, UnifiedDiff("app.py", []byte(before), []byte(after)))
}

func TestUnifiedDiffEqual(t *testing.T) {
	assert.Empty(t, UnifiedDiff("a.py", []byte("x = 1\n"), []byte("x = 1\n")))
}

func TestUnifiedDiffSeparateHunks(t *testing.T) {
	var before, after string
	for i := range 20 {
		line := "x = 1\n"
		if i == 0 || i == 19 {
			before += "import os\n"
			continue
		}
		before += line
		after += line
	}

	diff := UnifiedDiff("m.py", []byte(before), []byte(after))
	assert.Contains(t, diff, "@@ -1,4 +1,3 @@\n-import os\n")
	assert.Contains(t, diff, "@@ -17,4 +16,3 @@\n")
	assert.Contains(t, diff, " x = 1\n-import os\n")
}

func TestUnifiedDiffMissingNewline(t *testing.T) {
	diff := UnifiedDiff("m.py", []byte("x = 1\nimport os"), []byte("x = 1\n"))
	assert.Contains(t, diff, "-import os\n\\ No newline at end of file\n")
}
