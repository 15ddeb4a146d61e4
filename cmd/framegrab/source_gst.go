//go:build gstreamer

package main

import (
	"github.com/user/framegrab/pkg/adapters/gstsource"
	"github.com/user/framegrab/pkg/config"
	"github.com/user/framegrab/pkg/ports"
)

func newGstSource(cfg config.Config, log ports.Logger) (ports.MediaSource, error) {
	return gstsource.New(log, cfg.GstOptions()), nil
}
