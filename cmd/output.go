package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/grainstats/basis-tracker/internal/model"
)

// jsonOutput switches list commands from tables to JSON.
var jsonOutput bool

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode json")
	}
	return nil
}

// yamlOutput switches show-style commands to YAML.
var yamlOutput bool

func printYAML(v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "encode yaml")
	}
	_, err = os.Stdout.Write(out)
	return err
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

// formatBasis renders signed cents the way elevators post them, e.g. "-35" or "+12".
func formatBasis(cents int) string {
	if cents > 0 {
		return fmt.Sprintf("+%d", cents)
	}
	return fmt.Sprintf("%d", cents)
}

func formatDay(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

func printFacility(f *model.Facility) {
	w := newTable()
	fmt.Fprintf(w, "ID:\t%s\n", f.ID)
	fmt.Fprintf(w, "Name:\t%s\n", f.Name)
	if f.Company != "" {
		fmt.Fprintf(w, "Company:\t%s\n", f.Company)
	}
	fmt.Fprintf(w, "Location:\t%s, %s\n", f.City, f.State)
	if f.Address != "" {
		fmt.Fprintf(w, "Address:\t%s\n", f.Address)
	}
	fmt.Fprintf(w, "Coordinates:\t%.6f, %.6f\n", f.Lat, f.Lng)
	if f.IsVerified {
		fmt.Fprintf(w, "Verified:\tyes\n")
	}
	_ = w.Flush()
}
