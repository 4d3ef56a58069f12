package reactive

// Reconcile brings a list of mounted units in line with the next list of
// props by position. Units present on both sides are updated in place,
// surplus units are dropped from the tail and missing ones are created and
// appended. No keys are compared, so an insertion at the front updates every
// unit after it.
//
// create receives the index of the new unit. The returned slice replaces
// units; on error it holds every unit that is still mounted.
func Reconcile[U, P any](
	units []U,
	next []P,
	update func(u U, p P) error,
	create func(i int, p P) (U, error),
	drop func(u U),
) ([]U, error) {
	shared := min(len(units), len(next))
	for i := 0; i < shared; i++ {
		if err := update(units[i], next[i]); err != nil {
			return units, err
		}
	}

	if len(next) < len(units) {
		for _, u := range units[len(next):] {
			drop(u)
		}
		clear(units[len(next):])
		return units[:len(next)], nil
	}

	for i := len(units); i < len(next); i++ {
		u, err := create(i, next[i])
		if err != nil {
			return units, err
		}
		units = append(units, u)
	}
	return units, nil
}
