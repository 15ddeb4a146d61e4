package main

import (
	"github.com/user/framegrab/pkg/adapters/mp4source"
	"github.com/user/framegrab/pkg/adapters/testpattern"
	"github.com/user/framegrab/pkg/config"
	"github.com/user/framegrab/pkg/ports"
)

// buildSource creates the media source selected by cfg.
func buildSource(cfg config.Config, fs ports.FileSystem, renderer ports.Renderer, log ports.Logger) (ports.MediaSource, error) {
	switch cfg.Source.Kind {
	case config.SourceMP4:
		return mp4source.New(fs, log, cfg.MP4Options()), nil
	case config.SourceGStreamer:
		return newGstSource(cfg, log)
	default:
		return testpattern.New(renderer, log, cfg.TestPatternOptions()), nil
	}
}
