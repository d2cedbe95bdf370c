package main

import (
	"bytes"
	"strings"
	"testing"

	"legal_reporting/internal/domain"
)

func TestRoot_RequiresExactlyOneArg(t *testing.T) {
	for _, args := range [][]string{{}, {"a.csv", "b.csv"}} {
		root, cleanup := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(args)

		err := root.Execute()
		cleanup()
		if err == nil {
			t.Fatalf("args %v: expected an error", args)
		}
		if !strings.Contains(out.String(), "Usage:") {
			t.Fatalf("args %v: expected usage, got %q", args, out.String())
		}
	}
}

func TestSubcommands_ArgValidation(t *testing.T) {
	cases := [][]string{
		{"stage"},
		{"setup"},
		{"normalize", "extra"},
		{"stats", "extra"},
	}
	for _, args := range cases {
		root, cleanup := newRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(args)
		if err := root.Execute(); err == nil {
			t.Fatalf("args %v: expected an error", args)
		}
		cleanup()
	}
}

func TestPrintCounts(t *testing.T) {
	root, cleanup := newRootCmd()
	defer cleanup()
	var out bytes.Buffer
	root.SetOut(&out)

	printCounts(root, domain.TableCounts{StagingReviews: 3, Users: 2, Businesses: 1, Reviews: 2})
	for _, want := range []string{"staging_reviews", "| users", "businesses", "reviews"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in\n%s", want, out.String())
		}
	}
}
