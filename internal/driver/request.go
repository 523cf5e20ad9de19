package driver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/orizon-lang/cpu0isel/internal/callconv"
	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
)

// Request describes one function to lower: its signature, the globals it
// references and the operations of its body, in program order.
type Request struct {
	Function FunctionSpec `json:"function"`
	Globals  []GlobalSpec `json:"globals,omitempty"`
	Ops      []OpSpec     `json:"ops"`
}

// FunctionSpec is the signature of the function being lowered.
type FunctionSpec struct {
	Name    string    `json:"name"`
	Args    []ArgSpec `json:"args,omitempty"`
	VarArgs bool      `json:"varargs,omitempty"`
	SRet    bool      `json:"sret,omitempty"`
	Returns []string  `json:"returns,omitempty"`
}

// ArgSpec is one formal argument.
type ArgSpec struct {
	Type  string `json:"type"`
	SExt  bool   `json:"sext,omitempty"`
	ZExt  bool   `json:"zext,omitempty"`
	SRet  bool   `json:"sret,omitempty"`
	ByVal bool   `json:"byval,omitempty"`
	Size  int    `json:"size,omitempty"`
	Align int    `json:"align,omitempty"`
}

// GlobalSpec declares a global symbol.
type GlobalSpec struct {
	Name        string `json:"name"`
	Size        int    `json:"size,omitempty"`
	Linkage     string `json:"linkage,omitempty"`
	Section     string `json:"section,omitempty"`
	Function    bool   `json:"function,omitempty"`
	Declaration bool   `json:"declaration,omitempty"`
}

// OpSpec is one operation of the body. Kind is either one of the special
// kinds handled by the driver (call, return, global, external,
// block_address, jump_table, constant_pool, vastart) or a generic opcode
// name such as "shl_parts", "sdivrem" or "select".
type OpSpec struct {
	Kind    string    `json:"kind"`
	Callee  string    `json:"callee,omitempty"`
	Target  *Operand  `json:"target,omitempty"`
	Symbol  string    `json:"symbol,omitempty"`
	Label   string    `json:"label,omitempty"`
	Index   int       `json:"index,omitempty"`
	Type    string    `json:"type,omitempty"`
	Args    []Operand `json:"args,omitempty"`
	Returns []string  `json:"returns,omitempty"`
}

// Operand names a value: a formal argument ("arg", or a bare number), a
// result of an earlier op ("op" and "result") or an immediate ("const").
// The remaining fields are the argument attributes used when the operand is
// passed to a call or returned.
type Operand struct {
	Arg    *int   `json:"arg,omitempty"`
	Op     *int   `json:"op,omitempty"`
	Result int    `json:"result,omitempty"`
	Const  *int64 `json:"const,omitempty"`
	Type   string `json:"type,omitempty"`

	SExt  bool `json:"sext,omitempty"`
	ZExt  bool `json:"zext,omitempty"`
	ByVal bool `json:"byval,omitempty"`
	Size  int  `json:"size,omitempty"`
	Align int  `json:"align,omitempty"`
}

// UnmarshalJSON accepts a bare argument index as shorthand.
func (o *Operand) UnmarshalJSON(data []byte) error {
	var idx int
	if err := json.Unmarshal(data, &idx); err == nil {
		*o = Operand{Arg: &idx}
		return nil
	}
	type plain Operand
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = Operand(p)
	return nil
}

func (o Operand) flags() callconv.ArgFlags {
	return callconv.ArgFlags{SExt: o.SExt, ZExt: o.ZExt, ByVal: o.ByVal, ByValSize: o.Size, ByValAlign: o.Align}
}

// ParseRequests decodes a single request object or an array of them.
func ParseRequests(r io.Reader) ([]*Request, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, cerrors.InvalidRequest("empty request")
	}

	if data[0] == '[' {
		var reqs []*Request
		if err := json.Unmarshal(data, &reqs); err != nil {
			return nil, fmt.Errorf("failed to parse request: %w", err)
		}
		return reqs, nil
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return []*Request{&req}, nil
}

// LoadRequests reads the requests in path.
func LoadRequests(path string) ([]*Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open request file: %w", err)
	}
	defer f.Close()
	return ParseRequests(f)
}

// Validate checks the parts of a request that do not depend on lowering.
func (r *Request) Validate() error {
	if r.Function.Name == "" {
		return cerrors.InvalidRequest("function name is required")
	}
	for i, a := range r.Function.Args {
		if _, err := parseType(a.Type); err != nil {
			return cerrors.InvalidRequest(fmt.Sprintf("argument %d: %v", i, err))
		}
	}
	for _, t := range r.Function.Returns {
		if _, err := parseType(t); err != nil {
			return cerrors.InvalidRequest(fmt.Sprintf("return type: %v", err))
		}
	}
	seen := make(map[string]bool, len(r.Globals))
	for _, g := range r.Globals {
		if g.Name == "" {
			return cerrors.InvalidRequest("global without a name")
		}
		if seen[g.Name] {
			return cerrors.InvalidRequest("duplicate global " + g.Name)
		}
		seen[g.Name] = true
		if _, err := parseLinkage(g.Linkage); err != nil {
			return cerrors.InvalidRequest(err.Error())
		}
	}
	for i, op := range r.Ops {
		if op.Kind == "" {
			return cerrors.InvalidRequest(fmt.Sprintf("op %d has no kind", i))
		}
	}
	return nil
}

func parseType(s string) (dag.ValueType, error) {
	if s == "" {
		return dag.I32, nil
	}
	vt, ok := dag.ParseValueType(s)
	if !ok || !vt.IsInteger() {
		return 0, fmt.Errorf("unknown value type %q", s)
	}
	return vt, nil
}

func parseLinkage(s string) (dag.Linkage, error) {
	switch s {
	case "", "external":
		return dag.ExternalLinkage, nil
	case "internal":
		return dag.InternalLinkage, nil
	case "private":
		return dag.PrivateLinkage, nil
	case "weak":
		return dag.WeakLinkage, nil
	}
	return 0, fmt.Errorf("unknown linkage %q", s)
}

func (a ArgSpec) arg() callconv.Arg {
	vt, _ := parseType(a.Type)
	return callconv.Arg{VT: vt, Flags: callconv.ArgFlags{
		SExt: a.SExt, ZExt: a.ZExt, SRet: a.SRet,
		ByVal: a.ByVal, ByValSize: a.Size, ByValAlign: a.Align,
	}}
}
