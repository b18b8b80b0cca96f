package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fsnotify/fsnotify"

	"github.com/lauri000/hashtree/client"
	"github.com/lauri000/hashtree/content"
)

// watchContentServers implements SPEC_FULL.md §10's live content-server
// reload: reads path (one server per line, prefix "writable:" to mark it
// writable) and calls client.Client.SetContentServers on every write,
// returning a stop func.
func watchContentServers(logger log.Logger, cl *client.Client, path string) (func(), error) {
	if servers, err := readContentServersFile(path); err == nil {
		cl.SetContentServers(servers)
	} else {
		logger.Warn("failed initial content-servers load", "path", path, "err", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				servers, err := readContentServersFile(path)
				if err != nil {
					logger.Warn("failed to reload content servers", "path", path, "err", err)
					continue
				}
				logger.Info("reloaded content servers", "count", len(servers))
				cl.SetContentServers(servers)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("content servers watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}

func readContentServersFile(path string) ([]content.Server, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var servers []content.Server
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		writable := false
		if rest, ok := strings.CutPrefix(line, "writable:"); ok {
			writable = true
			line = rest
		}
		servers = append(servers, content.Server{URL: line, Writable: writable})
	}
	return servers, sc.Err()
}
