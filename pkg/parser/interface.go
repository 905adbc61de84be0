package parser

import "github.com/lcdc/cutlog/pkg/cut"

// FileSource satisfies cut.Source; parse failures surface as *ParseError
// values from Next rather than being skipped.
var _ cut.Source = (*FileSource)(nil)
