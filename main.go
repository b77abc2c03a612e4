package main

import (
	"fmt"

	"github.com/termhub/chat-relay-service/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
