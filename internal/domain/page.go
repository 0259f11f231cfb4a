package domain

// Page is one slice of a paginated listing. Page numbers are 1-based.
type Page[T any] struct {
	Items   []T
	Number  int
	PerPage int
	Total   int
}

// Pages returns the total number of pages, zero when there are no items.
func (p Page[T]) Pages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

func (p Page[T]) HasPrev() bool { return p.Number > 1 }

func (p Page[T]) HasNext() bool { return p.Number < p.Pages() }

// PrevNum returns the previous page number, or 0 if there is none.
func (p Page[T]) PrevNum() int {
	if !p.HasPrev() {
		return 0
	}
	return p.Number - 1
}

// NextNum returns the next page number, or 0 if there is none.
func (p Page[T]) NextNum() int {
	if !p.HasNext() {
		return 0
	}
	return p.Number + 1
}
