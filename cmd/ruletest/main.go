// Command ruletest applies a single extraction rule to a file or to literal
// text, so a pattern can be checked before it goes into a rules file.
//
//	ruletest -pattern 'Age\s*:\s*([\d.]+)' -transform age_round -file scan.jpg
//	ruletest -pattern 'Gender\s*:\s*(\w+)' -transform gender_turkish -text 'Gender: Erkek'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/metanome/cde/internal/rules"
	"github.com/metanome/cde/internal/textsource"
)

func main() {
	var (
		pattern   = flag.String("pattern", "", "regex with one capturing group (required)")
		transform = flag.String("transform", "none", "transform: none | age_round | gender_turkish")
		file      = flag.String("file", "", "image or PDF file to extract text from")
		text      = flag.String("text", "", "literal text to match against (instead of -file)")
		lang      = flag.String("lang", "eng", "tesseract language")
	)
	flag.Parse()

	if *pattern == "" || (*file == "" && *text == "") {
		fmt.Fprintln(os.Stderr, "usage: ruletest -pattern <regex> [-transform <id>] -file <path> | -text <text>")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	rule, err := rules.Compile(rules.Rule{
		Name:      "test",
		Pattern:   *pattern,
		Transform: rules.Transform(*transform),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid rule: %v\n", err)
		os.Exit(1)
	}

	input := *text
	if *file != "" {
		res, err := textsource.NewExtractor(textsource.Config{Lang: *lang}, logger).
			Extract(context.Background(), *file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "text extraction failed: %v\n", err)
			os.Exit(1)
		}
		input = res.Text
		fmt.Printf("extracted %d characters via %s\n", len(input), res.Method)
	}

	raw, matched := rule.Extract(input)
	if !matched {
		fmt.Println("pattern did not match")
		os.Exit(1)
	}
	fmt.Printf("captured: %q\n", raw)

	val, err := rules.NewTransformer(nil).Apply(rule.Transform, raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transform failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("value:    %q\n", val)
}
