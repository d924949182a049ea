package gcode

// ParserConfig toggles optional dialect features of the scanner.
type ParserConfig struct {
	EnableComments         bool
	EnableChecksums        bool
	EnableInfix            bool
	EnableMacros           bool
	EnableVendorExtensions bool
}

// DefaultParserConfig matches the defaults used by S1/S2/S3 of the
// motion-core test suite: comments, checksums, and macros on; the
// infix sublanguage and vendor extensions are opt-in.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		EnableComments:         true,
		EnableChecksums:        true,
		EnableInfix:            false,
		EnableMacros:           true,
		EnableVendorExtensions: false,
	}
}
