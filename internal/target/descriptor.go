package target

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	semver "github.com/Masterminds/semver/v3"

	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
)

// ABIVersion is the version of the calling convention implemented here.
const ABIVersion = "1.0.0"

// SupportedABI is the range of descriptor ABI versions this pass accepts.
const SupportedABI = ">= 1.0.0, < 2.0.0"

// Descriptor is the on-disk form of a subtarget.
type Descriptor struct {
	ABIVersion            string `json:"abi_version"`
	Arch                  string `json:"arch"`
	Endian                string `json:"endian"`
	RelocationModel       string `json:"relocation_model"`
	StackAlignment        int    `json:"stack_alignment,omitempty"`
	UseSmallSection       *bool  `json:"use_small_section,omitempty"`
	SmallSectionThreshold int    `json:"small_section_threshold,omitempty"`
}

// DefaultDescriptor returns the descriptor of a little endian, static,
// cpu032II target.
func DefaultDescriptor() *Descriptor {
	return &Descriptor{
		ABIVersion:      ABIVersion,
		Arch:            "cpu032II",
		Endian:          "little",
		RelocationModel: "static",
	}
}

// LoadDescriptor reads a JSON descriptor. A missing file yields the defaults.
func LoadDescriptor(path string) (*Descriptor, error) {
	d := DefaultDescriptor()
	if path == "" {
		return d, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, fmt.Errorf("failed to read target descriptor: %w", err)
	}

	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to parse target descriptor: %w", err)
	}

	return d, nil
}

// CheckABIVersion verifies the descriptor's ABI version against SupportedABI.
func (d *Descriptor) CheckABIVersion() error {
	if d.ABIVersion == "" {
		return nil
	}
	v, err := semver.NewVersion(d.ABIVersion)
	if err != nil {
		return cerrors.InvalidConfig("abi_version", err.Error())
	}
	c, err := semver.NewConstraint(SupportedABI)
	if err != nil {
		return cerrors.InvalidConfig("abi_version", err.Error())
	}
	if !c.Check(v) {
		return cerrors.InvalidConfig("abi_version",
			fmt.Sprintf("%s does not satisfy %s", v, SupportedABI))
	}
	return nil
}

// Subtarget validates the descriptor and builds the subtarget it describes.
func (d *Descriptor) Subtarget() (*Subtarget, error) {
	if err := d.CheckABIVersion(); err != nil {
		return nil, err
	}

	var arch Arch
	switch strings.ToLower(d.Arch) {
	case "", "cpu032ii":
		arch = Cpu032II
	case "cpu032i":
		arch = Cpu032I
	default:
		return nil, cerrors.InvalidConfig("arch", d.Arch)
	}

	var endian Endian
	switch strings.ToLower(d.Endian) {
	case "", "little", "el":
		endian = Little
	case "big", "eb":
		endian = Big
	case "host":
		endian = HostEndian()
	default:
		return nil, cerrors.InvalidConfig("endian", d.Endian)
	}

	reloc, err := ParseRelocModel(d.RelocationModel)
	if err != nil {
		return nil, err
	}

	st := NewSubtarget(arch, endian, reloc)
	if d.StackAlignment != 0 {
		if d.StackAlignment < 4 || d.StackAlignment&(d.StackAlignment-1) != 0 {
			return nil, cerrors.InvalidConfig("stack_alignment", fmt.Sprint(d.StackAlignment))
		}
		st.StackAlignment = d.StackAlignment
	}
	if d.UseSmallSection != nil {
		st.ObjFile.UseSmallSection = *d.UseSmallSection
	}
	if d.SmallSectionThreshold > 0 {
		st.ObjFile.SmallSectionThreshold = d.SmallSectionThreshold
	}

	return st, nil
}

// ParseRelocModel maps "static" / "pic" to a RelocModel.
func ParseRelocModel(s string) (RelocModel, error) {
	switch strings.ToLower(s) {
	case "", "static":
		return Static, nil
	case "pic":
		return PIC, nil
	default:
		return Static, cerrors.InvalidConfig("relocation_model", s)
	}
}
