package gogusplayer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/GeoffreyPlitt/debuggo"
)

var parserDebug = debuggo.Debug("gusplayer:config")

const maxSourceDepth = 8

// Config is a parsed timidity-style instrument configuration.
type Config struct {
	Dirs     []string
	Banks    map[int]map[int]*PatchSpec // bank -> program -> spec
	Drumsets map[int]map[int]*PatchSpec // drumset -> key -> spec
}

// PatchSpec is one mapping line: a program (or drum key) to a patch file.
type PatchSpec struct {
	Number  int
	File    string
	Drum    bool
	Options map[string]string // option name -> value
}

// ParseConfigFile parses a configuration file and everything it sources
func ParseConfigFile(filePath string) (*Config, error) {
	parserDebug("Starting to parse config file: %s", filePath)

	cfg := &Config{
		Dirs:     []string{filepath.Dir(filePath)},
		Banks:    make(map[int]map[int]*PatchSpec),
		Drumsets: make(map[int]map[int]*PatchSpec),
	}
	st := &parseState{cfg: cfg}
	if err := st.parseFile(filePath, 0); err != nil {
		return nil, err
	}

	parserDebug("Parsing complete. Found %d banks, %d drumsets", len(cfg.Banks), len(cfg.Drumsets))
	return cfg, nil
}

type parseState struct {
	cfg     *Config
	current map[int]*PatchSpec
	drum    bool
}

func (st *parseState) parseFile(filePath string, depth int) error {
	if depth > maxSourceDepth {
		return fmt.Errorf("config sources nested deeper than %d at %s", maxSourceDepth, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	baseDir := filepath.Dir(filePath)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		parserDebug("Parsing line %d: %s", lineNum, line)

		switch strings.ToLower(fields[0]) {
		case "dir":
			if len(fields) < 2 {
				parserDebug("Warning: dir without path at line %d", lineNum)
				continue
			}
			dir := fields[1]
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(baseDir, dir)
			}
			st.cfg.Dirs = append(st.cfg.Dirs, dir)
		case "source":
			if len(fields) < 2 {
				parserDebug("Warning: source without file at line %d", lineNum)
				continue
			}
			src := fields[1]
			if !filepath.IsAbs(src) {
				src = filepath.Join(baseDir, src)
			}
			if err := st.parseFile(src, depth+1); err != nil {
				return fmt.Errorf("line %d: %w", lineNum, err)
			}
		case "bank", "drumset":
			if len(fields) < 2 {
				parserDebug("Warning: %s without number at line %d", fields[0], lineNum)
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return fmt.Errorf("line %d: invalid %s number %q", lineNum, fields[0], fields[1])
			}
			st.drum = strings.EqualFold(fields[0], "drumset")
			st.current = st.cfg.table(st.drum, n)
		default:
			spec, err := parseMapping(fields, lineNum)
			if err != nil {
				parserDebug("Warning: Failed to parse line %d: %v", lineNum, err)
				continue
			}
			if st.current == nil {
				st.drum = false
				st.current = st.cfg.table(false, 0)
			}
			spec.Drum = st.drum
			st.current[spec.Number] = spec
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func (c *Config) table(drum bool, n int) map[int]*PatchSpec {
	tables := c.Banks
	if drum {
		tables = c.Drumsets
	}
	t, ok := tables[n]
	if !ok {
		t = make(map[int]*PatchSpec)
		tables[n] = t
	}
	return t
}

// parseMapping parses "<number> <patch> [option=value ...]"
func parseMapping(fields []string, lineNum int) (*PatchSpec, error) {
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("unknown directive %q", fields[0])
	}
	if n < 0 || n > 127 {
		return nil, fmt.Errorf("program %d out of range", n)
	}
	if len(fields) < 2 {
		return nil, fmt.Errorf("program %d has no patch file", n)
	}

	spec := &PatchSpec{
		Number:  n,
		File:    fields[1],
		Options: make(map[string]string),
	}
	for _, part := range fields[2:] {
		equalIndex := strings.Index(part, "=")
		if equalIndex == -1 {
			continue
		}
		option := strings.ToLower(strings.TrimSpace(part[:equalIndex]))
		value := strings.TrimSpace(part[equalIndex+1:])

		if isKnownOption(option) {
			spec.Options[option] = value
			parserDebug("Parsed option: %s = %s", option, value)
		} else {
			parserDebug("Warning: Unknown option '%s' at line %d", option, lineNum)
		}
	}
	return spec, nil
}

func isKnownOption(option string) bool {
	switch option {
	case "amp", "note", "keep", "strip":
		return true
	}
	return false
}

// ResolvePatchPath finds a patch file in the configured directories, latest
// dir first, trying the name as given and with a .pat extension.
func (c *Config) ResolvePatchPath(name string) (string, error) {
	candidates := []string{name}
	if filepath.Ext(name) == "" {
		candidates = append(candidates, name+".pat")
	}
	for _, cand := range candidates {
		if filepath.IsAbs(cand) {
			if _, err := os.Stat(cand); err == nil {
				return cand, nil
			}
			continue
		}
		for i := len(c.Dirs) - 1; i >= 0; i-- {
			p := filepath.Join(c.Dirs[i], cand)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("patch %s not found in %d directories", name, len(c.Dirs))
}

// GetStringOption returns an option value, or empty string if not found
func (s *PatchSpec) GetStringOption(option string) string {
	if s == nil || s.Options == nil {
		return ""
	}
	return s.Options[option]
}

// GetIntOption returns an integer option value, or defaultValue if not found or invalid
func (s *PatchSpec) GetIntOption(option string, defaultValue int) int {
	if s == nil || s.Options == nil {
		return defaultValue
	}

	value, exists := s.Options[option]
	if !exists {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		parserDebug("Warning: Invalid integer value for option %s: %s", option, value)
		return defaultValue
	}

	return intVal
}

// modeOverrides returns the mode bits to clear and whether to drop the data
// after the loop. Drum patches lose their loop and envelope unless kept.
func (s *PatchSpec) modeOverrides() (clearModes Modes, stripTail bool) {
	if s.Drum {
		clearModes = ModeLoop | ModeEnvelope
	}
	for _, keep := range strings.Split(s.GetStringOption("keep"), ",") {
		switch strings.ToLower(keep) {
		case "loop":
			clearModes &^= ModeLoop
		case "env":
			clearModes &^= ModeEnvelope
		}
	}
	for _, strip := range strings.Split(s.GetStringOption("strip"), ",") {
		switch strings.ToLower(strip) {
		case "loop":
			clearModes |= ModeLoop
		case "env":
			clearModes |= ModeEnvelope
		case "tail":
			stripTail = true
		}
	}
	return clearModes, stripTail
}
