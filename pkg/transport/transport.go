// Package transport implements the module-to-module distance matrix, AGV
// fleet, conveyor, and priority queue of transport jobs (spec.md §3
// "Transport job", §4.5).
//
// Open question resolved (spec.md §9): transport times are expressed in
// hours throughout. Distances are meters and speeds are meters/hour, so
// distance/speed is already hours with no unit conversion anywhere in
// this package.
package transport

import (
	"container/heap"
	"math"

	"github.com/google/uuid"
)

// MaxConcurrentTransports and MaxDispatchPerTick are the bounds of
// spec.md §4.5.
const (
	MaxConcurrentTransports = 20
	MaxDispatchPerTick      = 5
	PowerPerActiveJobKW     = 2.0
)

// StorageNodeID is the fixed layout cell every raw-material withdrawal
// is routed from, the way a real factory's bulk stockyard sits at one
// grid position regardless of which module draws from it.
const StorageNodeID = "storage"

type JobStatus int

const (
	JobQueued JobStatus = iota
	JobInTransit
	JobCompleted
)

// Job is one transport request (spec.md §3 "Transport job").
type Job struct {
	ID                string
	FromModule        string
	ToModule          string
	Resource          string
	Quantity          float64
	Priority          int
	Distance          float64
	Status            JobStatus
	AssignedVehicle   string
	UseConveyor       bool
	StartTime         float64
	CompletionTime    float64
	EnergyConsumed    float64
	index             int // heap bookkeeping
}

// AGVStatus enumerates the AGV lifecycle states of spec.md §4.5.
type AGVStatus int

const (
	AGVIdle AGVStatus = iota
	AGVTransporting
	AGVCharging
	AGVMaintenance
)

// AGV is one fleet vehicle.
type AGV struct {
	ID                 string
	Status             AGVStatus
	ChargeFraction     float64
	CapacityTons       float64
	CumulativeHours    float64
	CurrentJobID       string
}

// Layout places modules on a grid with fixed spacing (spec.md §4.5) and
// answers Manhattan distance queries.
type Layout struct {
	spacingM float64
	position map[string][2]int
	next     [2]int
}

func NewLayout(spacingM float64) *Layout {
	return &Layout{spacingM: spacingM, position: map[string][2]int{}}
}

// Place assigns the next free grid cell to a module instance ID, if it
// doesn't already have one.
func (l *Layout) Place(id string) {
	if _, ok := l.position[id]; ok {
		return
	}
	l.position[id] = l.next
	l.next[0]++
	if l.next[0] > 20 {
		l.next[0] = 0
		l.next[1]++
	}
}

// Distance returns the Manhattan distance in meters between two placed
// module instances.
func (l *Layout) Distance(a, b string) float64 {
	l.Place(a)
	l.Place(b)
	pa, pb := l.position[a], l.position[b]
	dx := math.Abs(float64(pa[0]-pb[0])) * l.spacingM
	dy := math.Abs(float64(pa[1]-pb[1])) * l.spacingM
	return dx + dy
}

// jobQueue is a min-heap keyed by (priority, job id), the same
// tie-break-by-id shape as the scheduler's task queue (spec.md §4.1
// "Priority-greedy, not optimal"). Job ids are random UUIDs, so jobs of
// equal priority are ordered by id string, not by enqueue order.
type jobQueue []*Job

func (q jobQueue) Len() int { return len(q) }
func (q jobQueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority < q[j].Priority
	}
	return q[i].ID < q[j].ID
}
func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *jobQueue) Push(x any) {
	job := x.(*Job)
	job.index = len(*q)
	*q = append(*q, job)
}
func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return job
}

// Fleet owns the AGVs, conveyor state, distance layout, and the job
// priority queue.
type Fleet struct {
	Layout            *Layout
	agvs              []*AGV
	conveyorUtil      float64
	conveyorCapacity  float64
	conveyorSpeed     float64
	agvSpeed          float64
	enableTransportTime bool
	queue             jobQueue
	inFlight          map[string]*Job
	completed         []*Job
}

func NewFleet(spacingM float64, fleetSize int, agvCapacityTons, agvSpeedMPerH, conveyorCapacityTons, conveyorSpeedMPerH float64, enableTransportTime bool) *Fleet {
	f := &Fleet{
		Layout:              NewLayout(spacingM),
		conveyorCapacity:    conveyorCapacityTons,
		conveyorSpeed:       conveyorSpeedMPerH,
		agvSpeed:            agvSpeedMPerH,
		enableTransportTime: enableTransportTime,
		inFlight:            map[string]*Job{},
	}
	heap.Init(&f.queue)
	for i := 0; i < fleetSize; i++ {
		f.agvs = append(f.agvs, &AGV{ID: uuid.NewString(), Status: AGVIdle, ChargeFraction: 1.0, CapacityTons: agvCapacityTons})
	}
	return f
}

// Enqueue adds a transport job to the priority queue. The queue itself
// has no size bound; only the number of in-flight jobs is capped, by
// MaxConcurrentTransports in Dispatch.
func (f *Fleet) Enqueue(from, to, resource string, quantity float64, priority int) *Job {
	j := &Job{
		ID:         uuid.NewString(),
		FromModule: from,
		ToModule:   to,
		Resource:   resource,
		Quantity:   quantity,
		Priority:   priority,
		Distance:   f.Layout.Distance(from, to),
		Status:     JobQueued,
	}
	heap.Push(&f.queue, j)
	return j
}

// EstimateTravelHours returns the travel time assignConveyor/assignAGV
// would compute for a job of this quantity and distance, without
// mutating any fleet or job state, so admission-time scheduling can
// fold a job's travel term into a task's completion time before the
// job is ever actually dispatched.
func (f *Fleet) EstimateTravelHours(quantity, distance float64) float64 {
	if !f.enableTransportTime {
		if quantity < 100 && f.conveyorUtil < 0.8 {
			return 0
		}
		return 0.1
	}
	if quantity < 100 && f.conveyorUtil < 0.8 {
		return distance / f.conveyorSpeed
	}
	const loadUnloadH = 0.1
	return distance/f.agvSpeed + loadUnloadH
}

// Dispatch advances up to MaxDispatchPerTick jobs from queue to
// conveyor or AGV, per the routing policy of spec.md §4.5. now is the
// current simulated time, used to stamp StartTime/CompletionTime.
func (f *Fleet) Dispatch(now float64) {
	dispatched := 0
	for dispatched < MaxDispatchPerTick && f.queue.Len() > 0 && len(f.inFlight) < MaxConcurrentTransports {
		job := f.queue[0]
		if job.Quantity < 100 && f.conveyorUtil < 0.8 {
			heap.Pop(&f.queue)
			f.assignConveyor(job, now)
			dispatched++
			continue
		}
		if agv := f.pickAGV(job.Quantity); agv != nil {
			heap.Pop(&f.queue)
			f.assignAGV(job, agv, now)
			dispatched++
			continue
		}
		// Neither transport is available for the head of the queue; leave
		// it queued and stop trying (later jobs would only be lower
		// priority under the heap's ordering, and a blocked head must not
		// starve behind, so we simply stop this tick).
		break
	}
}

func (f *Fleet) assignConveyor(job *Job, now float64) {
	travel := 0.0
	if f.enableTransportTime {
		travel = job.Distance / f.conveyorSpeed
	}
	job.UseConveyor = true
	job.Status = JobInTransit
	job.StartTime = now
	job.CompletionTime = now + travel
	f.conveyorUtil += job.Quantity / f.conveyorCapacity
	f.inFlight[job.ID] = job
}

func (f *Fleet) pickAGV(quantity float64) *AGV {
	for _, a := range f.agvs {
		if a.Status == AGVIdle && a.ChargeFraction > 0.2 && a.CapacityTons >= quantity {
			return a
		}
	}
	return nil
}

func (f *Fleet) assignAGV(job *Job, agv *AGV, now float64) {
	const loadUnloadH = 0.1
	travel := loadUnloadH
	if f.enableTransportTime {
		travel += job.Distance / f.agvSpeed
	}
	job.AssignedVehicle = agv.ID
	job.Status = JobInTransit
	job.StartTime = now
	job.CompletionTime = now + travel
	agv.Status = AGVTransporting
	agv.CurrentJobID = job.ID
	// battery debited proportional to distance: treat a full fleet
	// traversal of the layout's diagonal as the reference range.
	agv.ChargeFraction -= (job.Distance / 50000) // 50km nominal full-charge range
	if agv.ChargeFraction < 0 {
		agv.ChargeFraction = 0
	}
	f.inFlight[job.ID] = job
}

// Advance completes in-flight jobs whose CompletionTime has passed,
// returns vehicles to idle, and advances AGV charge/maintenance state
// (spec.md §4.5 AGV lifecycle).
func (f *Fleet) Advance(now float64, dtHours float64) []*Job {
	var justCompleted []*Job
	for id, job := range f.inFlight {
		if now < job.CompletionTime {
			continue
		}
		job.Status = JobCompleted
		if job.UseConveyor {
			f.conveyorUtil -= job.Quantity / f.conveyorCapacity
			if f.conveyorUtil < 0 {
				f.conveyorUtil = 0
			}
		} else if agv := f.agv(job.AssignedVehicle); agv != nil {
			agv.Status = AGVIdle
			agv.CurrentJobID = ""
			agv.CumulativeHours += job.CompletionTime - job.StartTime
			if agv.CumulativeHours >= 100 {
				agv.Status = AGVMaintenance
				agv.CumulativeHours = 0
			}
		}
		f.completed = append(f.completed, job)
		justCompleted = append(justCompleted, job)
		delete(f.inFlight, id)
	}
	for _, a := range f.agvs {
		if a.Status == AGVMaintenance {
			a.Status = AGVIdle
			continue
		}
		if a.Status == AGVIdle && a.ChargeFraction < 0.3 {
			a.Status = AGVCharging
		}
		if a.Status == AGVCharging {
			a.ChargeFraction += 0.10 * dtHours
			if a.ChargeFraction >= 0.95 {
				a.ChargeFraction = 1.0
				a.Status = AGVIdle
			}
		}
	}
	return justCompleted
}

func (f *Fleet) agv(id string) *AGV {
	for _, a := range f.agvs {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// ActivePowerKW is the current transport power draw: PowerPerActiveJobKW
// per in-flight job (spec.md §4.5).
func (f *Fleet) ActivePowerKW() float64 {
	return float64(len(f.inFlight)) * PowerPerActiveJobKW
}

// CompletedCount is reported in final_status.transport_completed.
func (f *Fleet) CompletedCount() int { return len(f.completed) }

// QueueLen exposes the current backlog depth for metrics.
func (f *Fleet) QueueLen() int { return f.queue.Len() }
