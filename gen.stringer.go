//go:build stringer

//go:generate go run golang.org/x/tools/cmd/stringer -linecomment -type SchemeKind -output zz_generated.schemekind.stringer.go -trimprefix SchemeKind
package compressed_tensors

import _ "golang.org/x/tools/cmd/stringer"
