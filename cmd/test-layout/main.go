package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"nyiyui.ca/hato/senro/config"
	"nyiyui.ca/hato/senro/tal"
	"nyiyui.ca/hato/senro/tal/layout"
)

func main() {
	layoutPath := flag.String("layout", "", "layout file (JSON); the demo layout if empty")
	flag.Parse()
	c := config.Demo()
	if *layoutPath != "" {
		var err error
		c, err = config.LoadFile(*layoutPath)
		if err != nil {
			panic(err)
		}
	}
	y, err := layout.NewGraph(c.Segments)
	if err != nil {
		panic(err)
	}
	il, err := tal.NewInterlock(y, c.Switches, c.Signals)
	if err != nil {
		panic(err)
	}
	switches := il.Switches()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	header := []string{"segment", "candidates"}
	for _, sw := range switches {
		header = append(header, sw.ID)
	}
	header = append(header, "next", "rule")
	fmt.Fprintln(w, strings.Join(header, "\t"))
	// every assignment of every switch
	for n := 0; n < 1<<len(switches); n++ {
		routes := make([]string, len(switches))
		for i, sw := range switches {
			r := layout.RouteMain
			if n&(1<<i) != 0 {
				r = layout.RouteBranch
			}
			if err := il.SetRoute(sw.ID, r); err != nil {
				panic(err)
			}
			routes[i] = string(r)
		}
		for _, s := range y.Segments() {
			res := tal.Resolve(s, y, il)
			candidates := make([]string, 0)
			for _, cand := range res.Candidates {
				candidates = append(candidates, cand.ID)
			}
			next := "-"
			if res.Found {
				next = res.Next.ID
			}
			row := append([]string{s.ID, strings.Join(candidates, ",")}, routes...)
			row = append(row, next, res.Rule.String())
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
	}
}
