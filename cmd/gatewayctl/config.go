package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
	"github.com/labvisio/is-spinnaker-gateway/internal/gateway"
	"github.com/labvisio/is-spinnaker-gateway/internal/rpc"
)

func newGetConfigCommand(opts *globalOptions) *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   "get-config",
		Short: "Print the current camera configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := parseSelector(fields)
			if err != nil {
				return err
			}
			ch, err := dial(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer ch.Close()

			client, err := rpc.NewClient(cmd.Context(), ch, opts.timeout)
			if err != nil {
				return err
			}
			var cfg camera.Config
			if err := client.Call(cmd.Context(), gateway.Topic(opts.camera, gateway.GetConfig), sel, &cfg); err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
	cmd.Flags().StringSliceVar(&fields, "field", []string{"all"}, "sections to read: all, image, sampling, camera")
	return cmd
}

func parseSelector(fields []string) (camera.FieldSelector, error) {
	var sel camera.FieldSelector
	for _, f := range fields {
		var s camera.Section
		if err := s.UnmarshalText([]byte(f)); err != nil {
			return sel, err
		}
		sel.Fields = append(sel.Fields, s)
	}
	return sel, nil
}

func newSetConfigCommand(opts *globalOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "set-config",
		Short: "Apply a camera configuration document (YAML or JSON)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := readConfig(file)
			if err != nil {
				return err
			}
			ch, err := dial(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer ch.Close()

			client, err := rpc.NewClient(cmd.Context(), ch, opts.timeout)
			if err != nil {
				return err
			}
			if err := client.Call(cmd.Context(), gateway.Topic(opts.camera, gateway.SetConfig), cfg, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "configuration document")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readConfig(path string) (camera.Config, error) {
	var cfg camera.Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.IsEmpty() {
		return cfg, fmt.Errorf("%s sets nothing", path)
	}
	return cfg, nil
}
