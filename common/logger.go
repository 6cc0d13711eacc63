// Copyright © 2017 Microsoft <wastore@microsoft.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package common

import (
	"fmt"
	"io"
	"log"
	"path"
	"runtime"
	"time"
)

// LogLevel mirrors syslog severity ordering: lower values are more severe.
type LogLevel uint8

const (
	LogNone LogLevel = iota
	LogPanic
	LogFatal
	LogError
	LogWarning
	LogInfo
	LogDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogPanic:
		return "PANIC"
	case LogFatal:
		return "FATAL"
	case LogError:
		return "ERROR"
	case LogWarning:
		return "WARN"
	case LogInfo:
		return "INFO"
	case LogDebug:
		return "DEBUG"
	default:
		return "NONE"
	}
}

type ILogger interface {
	ShouldLog(level LogLevel) bool
	Log(level LogLevel, msg string)
	Panic(err error)
}

type ILoggerCloser interface {
	ILogger
	CloseLog()
}

type ILoggerResetable interface {
	OpenLog()
	MinimumLogLevel() LogLevel
	ILoggerCloser
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

type LogLevelOverrideLogger struct {
	ILoggerResetable
	MinimumLevelToLog LogLevel
}

func (l LogLevelOverrideLogger) MinimumLogLevel() LogLevel {
	return l.MinimumLevelToLog
}

func (l LogLevelOverrideLogger) ShouldLog(level LogLevel) bool {
	if level == LogNone {
		return false
	}
	return level <= l.MinimumLevelToLog
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

const maxLogSize = 500 * 1024 * 1024

// runnerLogger is the per-JobRunnerThread log, named after the runner's
// ordinal index so that concurrent runners never contend on one file.
type runnerLogger struct {
	runnerIndex       uint8
	minimumLevelToLog LogLevel
	file              io.WriteCloser
	logFileFolder     string
	logger            *log.Logger
	sanitizer         LogSanitizer
}

func NewRunnerLogger(runnerIndex uint8, minimumLevelToLog LogLevel, logFileFolder string) ILoggerResetable {
	return &runnerLogger{
		runnerIndex:       runnerIndex,
		minimumLevelToLog: minimumLevelToLog,
		logFileFolder:     logFileFolder,
		sanitizer:         NewLogSanitizer(),
	}
}

func (rl *runnerLogger) OpenLog() {
	if rl.minimumLevelToLog == LogNone {
		return
	}

	file, err := NewRotatingWriter(path.Join(rl.logFileFolder, fmt.Sprintf("runner-%02d.log", rl.runnerIndex)), maxLogSize)
	PanicIfErr(err)

	rl.file = file

	flags := log.LstdFlags | log.LUTC
	utcMessage := fmt.Sprintf("Log times are in UTC. Local time is %s", time.Now().Format("2 Jan 2006 15:04:05"))

	rl.logger = log.New(rl.file, "", flags)
	rl.logger.Println("OS-Environment ", runtime.GOOS)
	rl.logger.Println("OS-Architecture ", runtime.GOARCH)
	rl.logger.Println("GOMAXPROCS ", runtime.GOMAXPROCS(0))
	rl.logger.Println(utcMessage)
}

func (rl *runnerLogger) MinimumLogLevel() LogLevel {
	return rl.minimumLevelToLog
}

func (rl *runnerLogger) ShouldLog(level LogLevel) bool {
	if level == LogNone {
		return false
	}
	return level <= rl.minimumLevelToLog
}

func (rl *runnerLogger) CloseLog() {
	if rl.minimumLevelToLog == LogNone {
		return
	}

	rl.logger.Println("Closing Log")
	_ = rl.file.Close() // If it was already closed, that's alright. We wanted to close it, anyway.
}

func (rl runnerLogger) Log(loglevel LogLevel, msg string) {
	msg = rl.sanitizer.SanitizeLogMessage(msg)

	if rl.ShouldLog(loglevel) {
		rl.logger.Println(msg)
	}
}

func (rl runnerLogger) Panic(err error) {
	rl.logger.Println(err) // Log the error first so it reaches the runner's file, then panic with it
	panic(err)
}

// PanicIfErr is used during one-time setup paths where a failure can only mean
// a programmer or environment error, not a recoverable runtime condition.
func PanicIfErr(err error) {
	if err != nil {
		panic(err)
	}
}
