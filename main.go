package main

import "github.com/Mohsinsiddi/w3sale/cmd"

func main() {
	cmd.Execute()
}
