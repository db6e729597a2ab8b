//go:build windows

package main

import (
	"go.uber.org/zap"
	"golang.org/x/sys/windows/svc"
)

const serviceName = "DanteSync"

type windowsService struct {
	iface, ntpServer, configPath string
	skipNTP                      bool
}

func (s *windowsService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (ssec bool, errno uint32) {
	changes <- svc.Status{State: svc.StartPending}

	stop := make(chan struct{})
	done := make(chan int, 1)
	go func() { done <- run(s.iface, s.ntpServer, s.skipNTP, s.configPath, stop) }()

	changes <- svc.Status{State: svc.Running, Accepts: svc.AcceptStop | svc.AcceptShutdown}

loop:
	for {
		select {
		case <-done:
			break loop
		case req := <-r:
			switch req.Cmd {
			case svc.Interrogate:
				changes <- req.CurrentStatus
			case svc.Stop, svc.Shutdown:
				changes <- svc.Status{State: svc.StopPending}
				close(stop)
				<-done
				break loop
			}
		}
	}

	changes <- svc.Status{State: svc.Stopped}
	return false, 0
}

// runAsService hands control to the service control manager; Execute's
// Stop/Shutdown handling drives run's shutdown instead of an OS signal.
func runAsService(iface, ntpServer string, skipNTP bool, configPath string) {
	err := svc.Run(serviceName, &windowsService{iface: iface, ntpServer: ntpServer, skipNTP: skipNTP, configPath: configPath})
	if err != nil {
		log.Fatal("service control manager run failed", zap.Error(err))
	}
}
