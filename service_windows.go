//go:build windows

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kardianos/service"
)

// program implements service.Interface so the server can run as a Windows
// service with proper Start/Stop handling.
type program struct {
	run    func(ctx context.Context) error
	ctx    context.Context
	cancel context.CancelFunc
	exit   chan struct{}
	runErr error
}

// Start launches the server loop in a goroutine; the service manager expects
// Start to return quickly.
func (p *program) Start(s service.Service) error {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.exit = make(chan struct{})

	go func() {
		defer close(p.exit)
		p.runErr = p.run(p.ctx)
	}()
	return nil
}

// Stop signals shutdown and waits for the server loop to drain.
func (p *program) Stop(s service.Service) error {
	p.cancel()

	select {
	case <-p.exit:
	case <-time.After(90 * time.Second):
		return fmt.Errorf("timeout waiting for service to stop")
	}
	return p.runErr
}

func serviceConfig() *service.Config {
	return &service.Config{
		Name:        "zexplorer",
		DisplayName: "zexplorer Image Generation Service",
		Description: "Local prompt-to-image generation server with variable substitution and LLM prompt enhancement",
		Arguments:   []string{"-serve"},
		Option: service.KeyValue{
			"StartType": "automatic",
		},
	}
}

// RunAsService runs the server under the Windows service manager when the
// process was launched by it. Returns false when running interactively so
// main continues on the normal paths.
func RunAsService(run func(ctx context.Context) error) (bool, error) {
	if service.Interactive() {
		return false, nil
	}

	prg := &program{run: run}
	s, err := service.New(prg, serviceConfig())
	if err != nil {
		return false, fmt.Errorf("creating service: %w", err)
	}
	if err := s.Run(); err != nil {
		return true, fmt.Errorf("service run failed: %w", err)
	}
	return true, nil
}

// HandleServiceCommand processes install/uninstall/start/stop arguments.
// Returns true when a service command was handled and the process should
// exit.
func HandleServiceCommand(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "install", "uninstall", "start", "stop", "restart":
	default:
		return false
	}

	s, err := service.New(&program{run: func(context.Context) error { return nil }}, serviceConfig())
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		return true
	}
	if err := service.Control(s, args[0]); err != nil {
		fmt.Printf("Service %s failed: %v\n", args[0], err)
		return true
	}
	fmt.Printf("Service %s succeeded\n", args[0])
	return true
}
