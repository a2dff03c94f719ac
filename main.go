package main

import "github.com/LittleBreak/work-box-sub001/cmd"

func main() {
	cmd.Execute()
}
