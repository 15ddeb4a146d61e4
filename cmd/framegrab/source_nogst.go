//go:build !gstreamer

package main

import (
	"errors"

	"github.com/ideamans/go-l10n"
	"github.com/user/framegrab/pkg/config"
	"github.com/user/framegrab/pkg/ports"
)

func newGstSource(cfg config.Config, log ports.Logger) (ports.MediaSource, error) {
	return nil, errors.New(l10n.T("GStreamer support is not compiled in; rebuild with -tags gstreamer"))
}
