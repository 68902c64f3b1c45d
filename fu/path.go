package fu

import (
	"go-ml.dev/pkg/iokit"
	"path/filepath"
)

/*
ArtifactPath resolves relative artifact directory into the iokit cache
*/
func ArtifactPath(s string) string {
	if filepath.IsAbs(s) {
		return s
	}
	return iokit.CacheFile(filepath.Join("go-ml", "Artifacts", s))
}
