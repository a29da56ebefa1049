// Command regenforce keeps registry values in line with a folder of .reg
// policy documents.
package main

func main() {
	execute()
}
