package surface

import "errors"

var (
	ErrInvalidRadius    = errors.New("surface: probe sphere radius must be positive")
	ErrDegenerateCell   = errors.New("surface: simulation cell is degenerate")
	ErrCellTooSmall     = errors.New("surface: periodic cell is too small for the probe sphere radius")
	ErrTooFewPoints     = errors.New("surface: at least four input points are required")
	ErrSelectionSize    = errors.New("surface: selection length does not match number of positions")
	ErrMeshConstruction = errors.New("surface: cannot construct two-manifold interface mesh")
	ErrCanceled         = errors.New("surface: construction canceled")
)
