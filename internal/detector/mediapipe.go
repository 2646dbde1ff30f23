package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const (
	serviceScript   = "gesture_service.py"
	idleTimeout     = 30 * time.Second
	responseTimeout = 10 * time.Second
)

var (
	// ErrScriptNotFound is returned when gesture_service.py cannot be located.
	ErrScriptNotFound = errors.New(serviceScript + " not found")

	// ErrServiceTimeout is returned when the service does not answer a frame
	// in time. The process is killed and restarted on the next frame.
	ErrServiceTimeout = errors.New("gesture service did not respond")
)

// ServiceError is an error reported by the service for one frame. The
// process stays usable.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return "gesture service: " + e.Message
}

// MediaPipeClassifier implements Classifier using a Python MediaPipe
// gesture recognizer subprocess. Frames are sent as a 4-byte big-endian
// length followed by JPEG bytes; each answer is one JSON line.
type MediaPipeClassifier struct {
	config     Config
	scriptPath string
	pythonPath string
	timeout    time.Duration

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	started   bool
	idleTimer *time.Timer
}

// NewMediaPipeClassifier creates a MediaPipe classifier.
// The Python process is started lazily on first classification and stopped
// after 30 seconds without frames.
func NewMediaPipeClassifier(config Config) (*MediaPipeClassifier, error) {
	scriptPath := config.Script
	if scriptPath == "" {
		scriptPath = findServiceScript()
	}
	if scriptPath == "" {
		return nil, ErrScriptNotFound
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("gesture service script: %w", err)
	}

	pythonPath := config.Python
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = responseTimeout
	}

	return &MediaPipeClassifier{
		config:     config,
		scriptPath: scriptPath,
		pythonPath: pythonPath,
		timeout:    timeout,
	}, nil
}

// Classify sends the frame to the MediaPipe service and selects the largest
// qualifying hand.
func (c *MediaPipeClassifier) Classify(frame *gocv.Mat) (Classification, error) {
	if frame == nil || frame.Empty() {
		return Classification{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureStarted(); err != nil {
		return Classification{}, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return Classification{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	hands, err := c.roundTrip(buf.GetBytes())
	var serviceErr *ServiceError
	switch {
	case errors.As(err, &serviceErr):
		c.resetIdleTimer()
		return Classification{}, err
	case err != nil:
		// the stream is out of sync; restart on the next frame
		c.kill()
		return Classification{}, err
	}

	c.resetIdleTimer()

	return Select(hands, frame.Cols(), frame.Rows(), c.config), nil
}

type reply struct {
	line []byte
	err  error
}

// roundTrip sends one frame and waits at most c.timeout for the answer.
func (c *MediaPipeClassifier) roundTrip(data []byte) ([]Hand, error) {
	stdin, stdout := c.stdin, c.stdout
	done := make(chan reply, 1)

	go func() {
		length := make([]byte, 4)
		binary.BigEndian.PutUint32(length, uint32(len(data)))

		if _, err := stdin.Write(length); err != nil {
			done <- reply{err: fmt.Errorf("write length: %w", err)}
			return
		}
		if _, err := stdin.Write(data); err != nil {
			done <- reply{err: fmt.Errorf("write data: %w", err)}
			return
		}

		line, err := stdout.ReadBytes('\n')
		if err != nil {
			err = fmt.Errorf("read response: %w", err)
		}
		done <- reply{line: line, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return parseResponse(r.line)
	case <-timer.C:
		log.WithField("timeout", c.timeout).Warn("gesture service hung, killing it")
		return nil, fmt.Errorf("%w within %s", ErrServiceTimeout, c.timeout)
	}
}

// kill stops the process without waiting for it to drain its input.
func (c *MediaPipeClassifier) kill() {
	if c.started && c.cmd != nil && c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
	c.shutdown()
}

// Close shuts down the Python process.
func (c *MediaPipeClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown()
}

func (c *MediaPipeClassifier) ensureStarted() error {
	if c.started {
		return nil
	}

	cmd := exec.Command(c.pythonPath, c.scriptPath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start gesture service: %w", err)
	}

	log.WithField("script", c.scriptPath).Debug("gesture service started")

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = bufio.NewReader(stdout)
	c.started = true

	return nil
}

func (c *MediaPipeClassifier) shutdown() error {
	if !c.started {
		return nil
	}

	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}

	if c.stdin != nil {
		c.stdin.Close()
	}

	cmd := c.cmd
	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	var err error
	select {
	case err = <-exited:
	case <-time.After(c.timeout):
		cmd.Process.Kill()
		err = <-exited
	}
	c.started = false
	c.cmd = nil
	c.stdin = nil
	c.stdout = nil

	log.Debug("gesture service stopped")

	return err
}

func (c *MediaPipeClassifier) resetIdleTimer() {
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	c.idleTimer = time.AfterFunc(idleTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.shutdown()
	})
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join("/app/scripts", serviceScript),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment
// next to the working directory or the executable.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand represents one hand in the Python service response.
type jsonHand struct {
	Points       []jsonPoint `json:"points"`
	Handedness   string      `json:"handedness"`
	Score        float64     `json:"score"`
	Gesture      string      `json:"gesture"`
	GestureScore float64     `json:"gesture_score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func parseResponse(line []byte) ([]Hand, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, &ServiceError{Message: response.Error}
	}

	hands := make([]Hand, 0, len(response.Hands))
	for _, h := range response.Hands {
		if len(h.Points) < NumLandmarks {
			continue
		}
		hands = append(hands, h.toHand())
	}
	return hands, nil
}

func (h jsonHand) toHand() Hand {
	hand := Hand{
		Landmarks: HandLandmarks{
			Handedness: h.Handedness,
			Score:      h.Score,
		},
		Gesture:      h.Gesture,
		GestureScore: h.GestureScore,
	}

	for i := 0; i < NumLandmarks; i++ {
		hand.Landmarks.Points[i] = Point3D{
			X: h.Points[i].X,
			Y: h.Points[i].Y,
			Z: h.Points[i].Z,
		}
	}

	return hand
}
