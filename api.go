package cox

// NewInterpreter builds a VM with its config defaults and every
// native function registered, ready for repeated calls to Interpret
// (once per file, or once per REPL line) (§6).
func NewInterpreter(config *Config) *VM {
	if config == nil {
		config = NewConfig()
	}
	vm := NewVM(config)
	registerNatives(vm)
	return vm
}
