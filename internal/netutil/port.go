package netutil

import (
	"errors"
	"fmt"
	"net"
)

// SelectBindAddr returns the address the snapshot server should listen on.
// The preferred address wins when it is free; when busy and autoFallback is
// set, the candidates are walked in order.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		free, err := listenable(preferred)
		if err != nil {
			return "", err
		}
		if free {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("preferred bind address in use: %s", preferred)
		}
	}

	for _, addr := range candidates {
		free, err := listenable(addr)
		if err != nil {
			return "", err
		}
		if free {
			return addr, nil
		}
	}

	return "", errors.New("no available bind addresses")
}

// listenable probes an address by briefly binding it.
func listenable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}
