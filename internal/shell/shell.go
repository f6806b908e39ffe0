// Package shell drives the points screen from line-oriented text commands.
package shell

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/woozymasta/ecopoints/internal/model"
	"github.com/woozymasta/ecopoints/internal/screen"

	"github.com/rs/zerolog/log"
)

const permissionAdvisory = "Do you have a moment? We really need your permission to access your location."

const help = `commands:
  items            list categories, [x] marks selected ones
  toggle <id>      select or unselect a category
  show             print the map center and markers
  press <id>       open the detail of a marker
  geojson [file]   write the map as GeoJSON to file or stdout
  back             leave the screen
  quit             exit
`

// ErrQuit is returned by Exec when the session should end.
var ErrQuit = errors.New("quit")

// Shell executes commands against a points screen and prints screen events.
// Output is serialized because events arrive on the screen's own goroutine.
type Shell struct {
	Screen *screen.Points
	out    io.Writer
	mu     sync.Mutex
}

// New returns a shell writing to out. Screen must be set before Exec is used.
func New(out io.Writer) *Shell {
	return &Shell{out: out}
}

// Printf writes formatted output.
func (sh *Shell) Printf(format string, args ...any) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, _ = fmt.Fprintf(sh.out, format, args...)
}

// Listen prints screen events; register it with screen.WithListener.
func (sh *Shell) Listen(ev screen.Event) {
	switch ev.Kind {
	case screen.CatalogLoaded:
		sh.Printf("%d categories available, type \"items\" to list them\n", ev.Count)
	case screen.CatalogLoadFailed:
		sh.Printf("categories unavailable: %v\n", ev.Err)
	case screen.LocationResolved:
		sh.Printf("location resolved, map is ready\n")
	case screen.PermissionDenied:
		sh.Printf("%s\n", permissionAdvisory)
	case screen.LocationUnavailable:
		sh.Printf("location unavailable, map disabled: %v\n", ev.Err)
	case screen.ResultsReplaced:
		sh.Printf("%d collection points found\n", ev.Count)
	case screen.QueryFailed:
		sh.Printf("search failed, keeping previous results: %v\n", ev.Err)
	case screen.StaleDropped:
		log.Debug().Uint64("generation", ev.Generation).Msg("Outdated results ignored")
	}
}

// Run reads commands from in until EOF, quit, or ctx is done.
func (sh *Shell) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sh.Screen.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if err := sh.Exec(line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				sh.Printf("error: %v\n", err)
			}
		}
	}
}

// Exec runs a single command line.
func (sh *Shell) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
	case "help", "?":
		sh.Printf("%s", help)

	case "items":
		sh.printItems()

	case "toggle":
		id, err := idArg(cmd, args)
		if err != nil {
			return err
		}
		return sh.Screen.ToggleCategory(id)

	case "show":
		sh.printMap()

	case "press":
		id, err := idArg(cmd, args)
		if err != nil {
			return err
		}
		return sh.Screen.PressMarker(id)

	case "geojson":
		return sh.writeGeoJSON(args)

	case "back":
		sh.Screen.GoBack()

	case "quit", "exit":
		return ErrQuit

	default:
		return fmt.Errorf("unknown command %q, try \"help\"", cmd)
	}

	return nil
}

// PrintDetail prints the contact view of a point.
func (sh *Shell) PrintDetail(id int64, d *model.PointDetail) {
	sh.Printf("point %d: %s\n  accepts: %s\n  address: %s, %s\n  email:   %s\n  whatsapp: %s\n",
		id,
		d.Location.Name,
		strings.Join(d.ItemTitles(), ", "),
		d.Location.City, d.Location.State,
		d.Location.Email,
		d.Location.Whatsapp)
}

func (sh *Shell) printItems() {
	snap := sh.Screen.Snapshot()
	sel := snap.Selector()
	if len(sel) == 0 {
		sh.Printf("no categories available\n")
		return
	}

	for _, c := range sel {
		mark := " "
		if c.Selected {
			mark = "x"
		}
		sh.Printf("[%s] %3d  %s\n", mark, c.ID, c.Title)
	}
}

func (sh *Shell) printMap() {
	snap := sh.Screen.Snapshot()
	frame, ok := snap.MapFrame()
	if !ok {
		sh.Printf("map inactive (location %s), %d points in %s\n", snap.Location, len(snap.Results), snap.Region)
		return
	}

	sh.Printf("center %.5f,%.5f  %d markers in %s\n", frame.Center.Lat, frame.Center.Long, len(frame.Markers), snap.Region)
	for _, m := range frame.Markers {
		sh.Printf("  %3d  %-30s %.5f,%.5f  %.2f km\n", m.ID, m.Title, m.Position.Lat, m.Position.Long, m.DistanceKm)
	}
}

func (sh *Shell) writeGeoJSON(args []string) error {
	frame, ok := sh.Screen.MapFrame()
	if !ok {
		return screen.ErrMapInactive
	}

	data, err := json.MarshalIndent(frame.GeoJSON(), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if len(args) == 0 {
		sh.Printf("%s", data)
		return nil
	}

	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return err
	}
	sh.Printf("map written to %s\n", args[0])
	return nil
}

func idArg(cmd string, args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: %s <id>", cmd)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}
