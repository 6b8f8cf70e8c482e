package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// render writes v as indented JSON when --json is set, through the --jq
// filter when one is given, and with pretty otherwise.
func render(c *cli.Context, v interface{}, pretty func(w io.Writer) error) error {
	w := c.App.Writer
	if filter := c.String("jq"); filter != "" {
		return outputJQ(w, filter, v)
	}
	if c.Bool("json") || pretty == nil {
		return outputJSON(w, v)
	}
	return pretty(w)
}

// outputJSON outputs data as JSON
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputJQ runs filter over the JSON form of v and prints every result.
// String results are printed raw, everything else as compact JSON.
func outputJQ(w io.Writer, filter string, v interface{}) error {
	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	// gojq only accepts the generic JSON types.
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return err
	}

	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := result.(error); ok {
			return fmt.Errorf("jq filter %q: %w", filter, err)
		}
		if s, ok := result.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		out, err := json.Marshal(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(out))
	}
}
