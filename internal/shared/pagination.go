package shared

// Pagination normalises limit/offset query input.
type Pagination struct {
	Limit  int
	Offset int
}

// Normalise clamps the pagination window to sane bounds.
func (p Pagination) Normalise() Pagination {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
