// Copyright 2018-2019 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package cmd contains helpers shared by the commands: the pid file of a
// running daemon, re-running the command detached from the console and the
// signal handling.
package cmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// PidFile is the file which holds the pid of the running daemon. The file
// is locked while the daemon runs, so the second instance cannot start.
type PidFile struct {
	fn string
	fl *flock.Flock
}

// NewPidFile creates new PidFile struct by the file name
func NewPidFile(fn string) *PidFile {
	return &PidFile{fn: fn}
}

// Interrupt reads the pid file and sends the interrupt signal to the process
func (pf *PidFile) Interrupt() error {
	pid, err := pf.ReadPid()
	if err != nil {
		return err
	}
	if pid == -1 {
		return fmt.Errorf("not running, no pid in %s", pf.fn)
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return errors.Wrapf(err, "could not access the process pid=%d", pid)
	}
	if err := p.Signal(os.Interrupt); err != nil {
		return errors.Wrapf(err, "could not send signal to pid=%d", pid)
	}
	fmt.Println("Sending interrupt notification to process pid=", pid)
	return nil
}

// ReadPid reads the pid file. It returns -1 if the file doesn't exist.
func (pf *PidFile) ReadPid() (int, error) {
	res, err := ioutil.ReadFile(pf.fn)
	if os.IsNotExist(err) {
		return -1, nil
	}
	if err != nil {
		return -1, errors.Wrapf(err, "could not read %s", pf.fn)
	}

	content := strings.TrimSpace(string(res))
	if len(content) == 0 || len(content) > 10 {
		return -1, fmt.Errorf("wrong content of %s", pf.fn)
	}

	pid, err := strconv.Atoi(content)
	if err != nil {
		return -1, fmt.Errorf("could not parse content=\"%s\" of the file %s", content, pf.fn)
	}
	return pid, nil
}

// Lock acquires the pid file and writes the current process id there.
// It returns false if the file is locked by another process.
func (pf *PidFile) Lock() bool {
	if pf.fl != nil {
		panic("Lock() must not be called twice")
	}

	plock := flock.New(pf.fn)
	if l, err := plock.TryLock(); !l || err != nil {
		return false
	}

	if err := ioutil.WriteFile(pf.fn, []byte(strconv.Itoa(os.Getpid())), 0640); err != nil {
		plock.Unlock()
		return false
	}
	pf.fl = plock
	return true
}

// Unlock removes the pid file and releases the lock acquired by Lock.
func (pf *PidFile) Unlock() {
	if pf.fl == nil {
		panic("Must be locked!")
	}
	os.Remove(pf.fn)
	pf.fl.Unlock()
	pf.fl = nil
}

// RemoveArgsWithName returns args without the ones which contain name
func RemoveArgsWithName(args []string, name string) []string {
	name = strings.ToLower(name)
	if len(name) == 0 {
		return args
	}

	res := make([]string, 0, len(args))
	for _, a := range args {
		if strings.Contains(strings.ToLower(a), name) {
			continue
		}
		res = append(res, a)
	}
	return res
}

// RunCommand starts the command c with params in background. It returns an
// error if the process exits within a second after the start.
func RunCommand(c string, params ...string) error {
	fmt.Printf("Starting command %s with params %v ... \n", c, params)
	cmd := exec.Command(c, params...)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGCHLD)
	defer signal.Stop(sigChan)

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "could not run command %s with params=%v", c, params)
	}

	select {
	case <-sigChan:
		return fmt.Errorf("the process %s could not be started, it exits right away", c)
	case <-time.After(time.Second):
		fmt.Printf("Started. pid=%d\n", cmd.Process.Pid)
	}
	return nil
}

// NewNotifierOnIntTermSignal calls f in a separate go-routine when the
// process receives SIGINT or SIGTERM
func NewNotifierOnIntTermSignal(f func(s os.Signal)) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		signal.Stop(sigChan)
		f(s)
	}()
}
