package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"github.com/orizon-lang/cpu0isel/internal/isel"
	"github.com/orizon-lang/cpu0isel/internal/mfunc"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// Report is the result of lowering one request.
type Report struct {
	Function string `json:"function"`
	Target   string `json:"target"`
	Graph    string `json:"graph"`
	State    State  `json:"state"`
	Calls    []Call `json:"calls,omitempty"`
	// Expanded lists nodes left to generic expansion, with their action.
	Expanded []string `json:"expanded,omitempty"`
}

// Call summarizes one lowered call site.
type Call struct {
	Callee  string   `json:"callee"`
	Bytes   int      `json:"bytes"`
	ArgRegs []string `json:"arg_regs,omitempty"`
}

// State is the part of the function lowering state consumed by frame
// lowering and the prologue emitter.
type State struct {
	SRetReg          string   `json:"sret_reg,omitempty"`
	MaxCallFrameSize int      `json:"max_call_frame_size"`
	VarArgsOffset    *int     `json:"varargs_offset,omitempty"`
	GPRestoreOffset  *int     `json:"gp_restore_offset,omitempty"`
	HomedArgRegs     []string `json:"homed_arg_regs,omitempty"`
	LiveIns          []string `json:"live_ins,omitempty"`
	VirtRegs         int      `json:"virt_regs"`
}

func stateOf(fn *isel.Func) State {
	mf := fn.MF
	s := State{
		MaxCallFrameSize: mf.MaxCallFrameSize(),
		HomedArgRegs:     lo.Map(mf.HomedArgRegs(), func(r target.Reg, _ int) string { return r.String() }),
		LiveIns: lo.Map(mf.LiveIns(), func(li mfunc.LiveIn, _ int) string {
			return li.Phys.String() + "->" + li.Virt.String()
		}),
		VirtRegs: mf.NumVirtRegs(),
	}
	if r := mf.SRetReturnReg(); r != target.NoReg {
		s.SRetReg = r.String()
	}
	if fi := mf.VarArgsFrameIndex(); fi != 0 {
		off := mf.ObjectOffset(fi)
		s.VarArgsOffset = &off
	}
	if mf.NeedGPSaveRestore() {
		off := mf.ObjectOffset(mf.GPFI())
		s.GPRestoreOffset = &off
	}
	return s
}

// WriteText prints r in the human readable form used by cpu0-lower.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "function %s (%s)\n", r.Function, r.Target)
	b.WriteString(r.Graph)

	s := r.State
	fmt.Fprintf(&b, "max call frame: %d\n", s.MaxCallFrameSize)
	if s.SRetReg != "" {
		fmt.Fprintf(&b, "sret register: %s\n", s.SRetReg)
	}
	if s.VarArgsOffset != nil {
		fmt.Fprintf(&b, "varargs at: %d\n", *s.VarArgsOffset)
	}
	if s.GPRestoreOffset != nil {
		fmt.Fprintf(&b, "$gp restore at: %d\n", *s.GPRestoreOffset)
	}
	if len(s.HomedArgRegs) > 0 {
		fmt.Fprintf(&b, "homed: %s\n", strings.Join(s.HomedArgRegs, " "))
	}
	for _, c := range r.Calls {
		fmt.Fprintf(&b, "call %s: %d bytes, regs [%s]\n", c.Callee, c.Bytes, strings.Join(c.ArgRegs, " "))
	}
	for _, e := range r.Expanded {
		fmt.Fprintf(&b, "expand %s\n", e)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON writes reports as an indented JSON array.
func WriteJSON(w io.Writer, reports []*Report) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
