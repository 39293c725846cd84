package connector

// RunOptions controls a single Run call.
type RunOptions struct {
	// Warn returns a failed Result instead of a CommandError.
	Warn bool

	// Hide suppresses printing of the captured streams.
	Hide bool

	// Echo prints the assembled command line before running it.
	Echo bool
}

// RunOption configures a Run call.
type RunOption func(*RunOptions)

// WithWarn turns command failures into failed results.
func WithWarn() RunOption {
	return func(o *RunOptions) {
		o.Warn = true
	}
}

// ShowOutput prints stdout and stderr after the command finishes.
func ShowOutput() RunOption {
	return func(o *RunOptions) {
		o.Hide = false
	}
}

// WithEcho prints the assembled command line before running it.
func WithEcho() RunOption {
	return func(o *RunOptions) {
		o.Echo = true
	}
}

// ApplyRun returns the defaults with opts applied.
func ApplyRun(opts ...RunOption) RunOptions {
	o := RunOptions{Hide: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// PutOptions controls a single Put call.
type PutOptions struct {
	// KeyFile overrides the connection's own key.
	KeyFile string

	// LocalPath is the directory holding the file.
	LocalPath string

	// RemotePath is the destination on the target.
	RemotePath string
}

// PutOption configures a Put call.
type PutOption func(*PutOptions)

// WithKeyFile overrides the key used for a single copy.
func WithKeyFile(path string) PutOption {
	return func(o *PutOptions) {
		o.KeyFile = path
	}
}

// WithLocalPath sets the directory the file is read from.
func WithLocalPath(path string) PutOption {
	return func(o *PutOptions) {
		o.LocalPath = path
	}
}

// WithRemotePath sets the destination path on the target.
func WithRemotePath(path string) PutOption {
	return func(o *PutOptions) {
		o.RemotePath = path
	}
}

// ApplyPut returns the defaults with opts applied.
func ApplyPut(opts ...PutOption) PutOptions {
	o := PutOptions{LocalPath: ".", RemotePath: "."}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
