package repository

import "strconv"

// sqlParam appends " AND col = $N" to a WHERE clause builder and advances
// argN, mirroring the positional-placeholder style used throughout this
// package's hand-written queries.
func sqlParam(col string, argN *int) string {
	*argN++
	return " AND " + col + " = $" + strconv.Itoa(*argN)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
