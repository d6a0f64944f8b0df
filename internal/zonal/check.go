package zonal

import "math"

// ShareSum is the total percentage recorded for one subbasin.
type ShareSum struct {
	Sub int
	Sum float64
}

// LandCoverSums totals AreaPerc per subbasin in row order.
func LandCoverSums(rows []LandCoverRow) []ShareSum {
	return sumBy(len(rows), func(i int) (int, float64) { return rows[i].Sub, rows[i].AreaPerc })
}

// TractSums totals SubPerc per subbasin in row order.
func TractSums(rows []TractRow) []ShareSum {
	return sumBy(len(rows), func(i int) (int, float64) { return rows[i].Sub, rows[i].SubPerc })
}

func sumBy(n int, at func(int) (int, float64)) []ShareSum {
	var out []ShareSum
	pos := make(map[int]int)
	for i := 0; i < n; i++ {
		sub, v := at(i)
		j, ok := pos[sub]
		if !ok {
			j = len(out)
			pos[sub] = j
			out = append(out, ShareSum{Sub: sub})
		}
		out[j].Sum += v
	}
	return out
}

// CheckShares returns the subbasins whose percentages do not add up to 100
// within tol percentage points.
func CheckShares(sums []ShareSum, tol float64) []ShareSum {
	var off []ShareSum
	for _, s := range sums {
		if math.Abs(s.Sum-100) > tol {
			off = append(off, s)
		}
	}
	return off
}

// TractOverrun is a tract credited with more area inside one subbasin than
// its recorded total.
type TractOverrun struct {
	Sub  int
	FIPS string
	Perc float64
}

// CheckTractPerc returns the rows whose TractPerc exceeds 100 by more than
// tol percentage points.
func CheckTractPerc(rows []TractRow, tol float64) []TractOverrun {
	var over []TractOverrun
	for _, r := range rows {
		if r.TractPerc > 100+tol {
			over = append(over, TractOverrun{Sub: r.Sub, FIPS: r.FIPS, Perc: r.TractPerc})
		}
	}
	return over
}
