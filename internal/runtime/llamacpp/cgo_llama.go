//go:build llama

package llamacpp

// cgo link directives for the in-process runtime. The rpath of $ORIGIN lets
// the loader find libllama.so next to the binary in ./bin; -L points the
// linker at the same directory.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../../bin -lllama
*/
import "C"
