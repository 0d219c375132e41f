package mesh

import "time"

func SetDedupClock(d *Dedup, now func() time.Time)       { d.now = now }
func SetRegistryClock(r *Registry, now func() time.Time) { r.now = now }
