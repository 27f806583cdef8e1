package region

// GetAs returns the projection of id when it has type T
func GetAs[T any](r *Region, id string) (T, bool) {
	v, ok := r.Get(id).(T)
	return v, ok
}

// AllAs returns the visible projections that have type T, ordered by id
func AllAs[T any](r *Region) []T {
	all := r.GetAll()
	out := make([]T, 0, len(all))
	for _, v := range all {
		if t, ok := v.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
