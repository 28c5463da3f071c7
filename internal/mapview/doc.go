// Package mapview holds the state of the parcels and activities map: the base
// tile layer, the two vector layers, the viewport and the activity legend.
//
// A MapView is built from an explicit Config and a Fetcher. Load fetches both
// layers concurrently; each layer is replaced as soon as its own response
// arrives and the viewport is fitted to the parcels once they are loaded.
//
//	mv := mapview.New(cfg, geoclient.New("http://localhost:8086"))
//	err := mv.Load(ctx, func(l *mapview.Layer) {
//	    fmt.Println(l.Name(), l.Len())
//	})
package mapview
