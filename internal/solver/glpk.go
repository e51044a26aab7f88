//go:build glpk

package solver

import "github.com/andresuchdata/netplan/internal/solver/glpkbackend"

func init() {
	optional = append(optional, glpkbackend.New())
}
