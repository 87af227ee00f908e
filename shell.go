package main

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/CodedInternet/rescuebot/comms"
	"github.com/abiosoft/ishell"
	"github.com/google/uuid"
)

// newShell builds the operator console. Every dispatch table entry becomes
// a shell command sharing the network front ends' parser.
func newShell(conductor *comms.Conductor) *ishell.Shell {
	origin := comms.Origin{Source: "console", Session: uuid.NewString()}

	shell := ishell.New()
	shell.Println("Rescuebot operator shell")
	shell.ShowPrompt(true)

	for _, info := range conductor.Commands() {
		name := info.Name
		help := name
		if info.Arg {
			help = name + " <value>"
		}
		if info.Timed {
			help += " (timed)"
		}

		shell.AddCmd(&ishell.Cmd{
			Name: name,
			Help: help,
			Func: func(c *ishell.Context) {
				if err := consoleCommand(conductor, origin, name, c.Args); err != nil {
					c.Err(err)
				}
			},
		})
	}

	shell.AddCmd(&ishell.Cmd{
		Name: "state",
		Help: "print the actuator state",
		Func: func(c *ishell.Context) {
			state, err := json.MarshalIndent(conductor.Device.State(), "", "  ")
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(string(state))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "history",
		Help: "history [limit]",
		Func: func(c *ishell.Context) {
			if conductor.Journal == nil {
				c.Println("Command journal disabled")
				return
			}
			limit := 20
			if len(c.Args) >= 1 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil || n <= 0 {
					c.Println("history [limit]")
					return
				}
				limit = n
			}
			entries, err := conductor.Journal.Recent(limit)
			if err != nil {
				c.Err(err)
				return
			}
			for _, e := range entries {
				c.Printf("%s %-7s %-14s %5d %s\n", e.At.Format("15:04:05.000"), e.Source, e.Command, e.Value, e.Outcome)
			}
		},
	})

	return shell
}

func consoleCommand(conductor *comms.Conductor, origin comms.Origin, name string, args []string) error {
	if len(args) == 0 {
		return conductor.ProcessCommand(origin, name, "", false)
	}
	return conductor.ProcessCommand(origin, name, strings.Join(args, " "), true)
}
