// Command gfsutil is a small CLI over a bbolt-backed object store,
// exercising the staging engine and merger from outside of a Go
// program embedding the library directly.
package main

func main() {
	Execute()
}
