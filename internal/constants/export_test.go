package constants

// Option is exported for tests to be able to override the base directory.
type Option = option

// WithBaseDir overrides the function returning the base directory.
func WithBaseDir(baseDir func() (string, error)) Option {
	return func(o *options) {
		o.baseDir = baseDir
	}
}
