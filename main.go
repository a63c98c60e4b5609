package main

import "github.com/authent8/authent8/cmd/authent8"

func main() { authent8.Execute() }
