// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/wikipath/services/wikipath"
)

// interactive reports whether stdin and stdout are terminals.
func interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// promptEndpoints asks for the two search endpoints, validating each
// against the loaded graph as it is entered.
func promptEndpoints(ctx context.Context, svc *wikipath.Service) (src, dst string, err error) {
	validate := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("enter a title or id:<n>")
		}
		_, err := svc.Resolve(ctx, s)
		return describeError(err)
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("From").
				Placeholder("title or id:<n>").
				Value(&src).
				Validate(validate),
			huh.NewInput().
				Title("To").
				Placeholder("title or id:<n>").
				Value(&dst).
				Validate(validate),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return "", "", err
	}
	return src, dst, nil
}
