// Package match groups the search algorithms: sliding-window scanning of
// documents (scanner), top-k selection (rank) and composite scoring (combine).
package match
