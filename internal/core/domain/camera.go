package domain

import (
	"strings"
	"time"
)

type CameraID string

// StreamIdentifier is the stable logical name of a feed (a platform video id
// or a direct URL). It may map to different media addresses over time.
type StreamIdentifier string

// MediaAddress is a resolved, perishable network locator for playable video
// data. Live feeds rotate CDN endpoints, so an address must never be cached
// across healing attempts.
type MediaAddress string

type CameraKind string

const (
	KindYouTube CameraKind = "youtube"
	KindHLS     CameraKind = "hls"
	KindMJPEG   CameraKind = "mjpeg"
)

type Camera struct {
	ID          CameraID         `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	URL         string           `json:"url"`
	StreamID    StreamIdentifier `json:"stream_id,omitempty"`
	Kind        CameraKind       `json:"kind"`
	Location    string           `json:"location"`
	Sector      string           `json:"sector"`
	Status      string           `json:"status,omitempty"`
	Resolution  string           `json:"resolution,omitempty"`
	AddedAt     time.Time        `json:"added_at"`
}

type City struct {
	Name    string   `json:"name"`
	Cameras []Camera `json:"cameras"`
}

type State struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Cities []City `json:"cities"`
}

type Country struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	States []State `json:"states"`
}

// Registry is the camera catalog as a geographic hierarchy. Slices keep
// insertion order; lookups walk the tree in that order and the first match
// wins.
type Registry struct {
	Countries []Country `json:"countries"`
}

// FindByName returns the first camera whose name contains the given text,
// case-insensitively, walking countries, states and cities in insertion
// order.
func (r *Registry) FindByName(name string) *Camera {
	needle := strings.ToLower(name)
	for ci := range r.Countries {
		for si := range r.Countries[ci].States {
			for yi := range r.Countries[ci].States[si].Cities {
				city := &r.Countries[ci].States[si].Cities[yi]
				for k := range city.Cameras {
					if strings.Contains(strings.ToLower(city.Cameras[k].Name), needle) {
						return &city.Cameras[k]
					}
				}
			}
		}
	}
	return nil
}

// Cameras flattens the hierarchy in traversal order.
func (r *Registry) Cameras() []Camera {
	var out []Camera
	for _, country := range r.Countries {
		for _, state := range country.States {
			for _, city := range state.Cities {
				out = append(out, city.Cameras...)
			}
		}
	}
	return out
}

// Add places a camera under its sector/location bucket, creating the
// country, state and city nodes on first use.
func (r *Registry) Add(cam Camera) {
	country := r.country(cam.Sector)
	state := country.state(cam.Sector)
	city := state.city(cam.Location)
	city.Cameras = append(city.Cameras, cam)
}

func (r *Registry) country(code string) *Country {
	for i := range r.Countries {
		if r.Countries[i].Code == code {
			return &r.Countries[i]
		}
	}
	r.Countries = append(r.Countries, Country{Code: code, Name: code})
	return &r.Countries[len(r.Countries)-1]
}

func (c *Country) state(code string) *State {
	for i := range c.States {
		if c.States[i].Code == code {
			return &c.States[i]
		}
	}
	c.States = append(c.States, State{Code: code, Name: code})
	return &c.States[len(c.States)-1]
}

func (s *State) city(name string) *City {
	for i := range s.Cities {
		if s.Cities[i].Name == name {
			return &s.Cities[i]
		}
	}
	s.Cities = append(s.Cities, City{Name: name})
	return &s.Cities[len(s.Cities)-1]
}

// BuildRegistry groups a flat camera list into the geographic hierarchy,
// preserving list order.
func BuildRegistry(cams []Camera) *Registry {
	reg := &Registry{}
	for _, cam := range cams {
		reg.Add(cam)
	}
	return reg
}
