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
package cmd

import (
	"io/ioutil"
	"os"
	"path"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPidFileLock(t *testing.T) {
	dir, err := ioutil.TempDir("", "pidTest")
	if err != nil {
		t.Fatal("could not create temp dir, err=", err)
	}
	defer os.RemoveAll(dir)

	pf := NewPidFile(path.Join(dir, "agent.pid"))
	pid, err := pf.ReadPid()
	assert.Nil(t, err)
	assert.Equal(t, -1, pid)
	assert.NotNil(t, pf.Interrupt())

	if !pf.Lock() {
		t.Fatal("the pid file must be locked")
	}
	pid, err = pf.ReadPid()
	assert.Nil(t, err)
	assert.Equal(t, os.Getpid(), pid)

	pf2 := NewPidFile(path.Join(dir, "agent.pid"))
	assert.False(t, pf2.Lock())

	pf.Unlock()
	_, err = os.Stat(path.Join(dir, "agent.pid"))
	assert.True(t, os.IsNotExist(err))
	assert.Panics(t, pf.Unlock)
}

func TestReadPidWrongContent(t *testing.T) {
	dir, err := ioutil.TempDir("", "pidTest")
	if err != nil {
		t.Fatal("could not create temp dir, err=", err)
	}
	defer os.RemoveAll(dir)

	fn := path.Join(dir, "bad.pid")
	ioutil.WriteFile(fn, []byte("abc"), 0640)
	_, err = NewPidFile(fn).ReadPid()
	assert.NotNil(t, err)

	ioutil.WriteFile(fn, []byte(strconv.Itoa(1234)+"\n"), 0640)
	pid, err := NewPidFile(fn).ReadPid()
	assert.Nil(t, err)
	assert.Equal(t, 1234, pid)
}

func TestRemoveArgsWithName(t *testing.T) {
	args := []string{"agent", "start", "--daemon", "--config-file", "a.json"}
	assert.Equal(t, []string{"agent", "start", "--config-file", "a.json"}, RemoveArgsWithName(args, "daemon"))
	assert.Equal(t, args, RemoveArgsWithName(args, ""))
}
