// Package controller runs the wake, capture, drain and sleep cycle.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/diagnostics"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/remote"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/transmit"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

// PowerMonitor is the slice of power.Monitor the controller drives.
type PowerMonitor interface {
	Sample(ctx context.Context) (domain.PowerState, error)
	Sampling() bool
	BudgetFor(op domain.Operation) bool
}

// Deps wires the controller. Storage, State and Tasks are optional.
type Deps struct {
	Camera  ports.Camera
	Power   PowerMonitor
	Queue   *transmit.Queue
	Chooser transmit.Chooser
	Wake    ports.WakeScheduler
	Diag    *diagnostics.Diagnostics
	Motion  *MotionLatch
	Storage ports.Storage
	State   ports.StateStore
	Tasks   *remote.Tasks
	Obs     ports.Observability
}

// Controller is single threaded: every method except those on its
// MotionLatch must be called from the loop goroutine.
type Controller struct {
	cfg     Config
	camera  ports.Camera
	power   PowerMonitor
	queue   *transmit.Queue
	chooser transmit.Chooser
	wake    ports.WakeScheduler
	diag    *diagnostics.Diagnostics
	motion  *MotionLatch
	storage ports.Storage
	store   ports.StateStore
	tasks   *remote.Tasks
	obs     ports.Observability
	now     func() time.Time

	state       State
	persist     domain.PersistentState
	startLevel  domain.PowerLevel
	manual      bool
	captures    uint64
	wakeFault   bool
	booted      bool
	lastPlan    SleepPlan
	beforeSleep []func(context.Context)
}

func New(cfg Config, deps Deps) (*Controller, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("controller config: %w", err)
	}
	switch {
	case deps.Camera == nil:
		return nil, errors.New("camera is required")
	case deps.Power == nil:
		return nil, errors.New("power monitor is required")
	case deps.Queue == nil:
		return nil, errors.New("transmission queue is required")
	case deps.Chooser == nil:
		return nil, errors.New("link chooser is required")
	case deps.Wake == nil:
		return nil, errors.New("wake scheduler is required")
	}
	if deps.Diag == nil {
		deps.Diag = diagnostics.New(0)
	}
	if deps.Motion == nil {
		deps.Motion = NewMotionLatch(cfg.MotionCooldown)
	} else {
		deps.Motion.SetCooldown(cfg.MotionCooldown)
	}
	if deps.Obs == nil {
		deps.Obs = ports.NopObservability{}
	}
	return &Controller{
		cfg:     cfg,
		camera:  deps.Camera,
		power:   deps.Power,
		queue:   deps.Queue,
		chooser: deps.Chooser,
		wake:    deps.Wake,
		diag:    deps.Diag,
		motion:  deps.Motion,
		storage: deps.Storage,
		store:   deps.State,
		tasks:   deps.Tasks,
		obs:     deps.Obs,
		now:     time.Now,
	}, nil
}

// Motion returns the latch the PIR interrupt should signal.
func (c *Controller) Motion() *MotionLatch { return c.motion }

func (c *Controller) State() State { return c.state }

func (c *Controller) Persistent() domain.PersistentState { return c.persist }

// LastPlan is the plan most recently handed to the wake scheduler.
func (c *Controller) LastPlan() SleepPlan { return c.lastPlan }

// BeforeSleep registers fn to run right before wake sources are armed.
func (c *Controller) BeforeSleep(fn func(context.Context)) {
	c.beforeSleep = append(c.beforeSleep, fn)
}

// Boot loads persistent state, restores the queue and re-adopts spooled
// frames the journal does not know about. Failures are logged; the node
// always comes up.
func (c *Controller) Boot() {
	if c.booted {
		return
	}
	c.booted = true
	if c.store != nil {
		st, err := c.store.Load()
		if err != nil {
			c.obs.LogError("state_load_failed", err)
		} else {
			c.persist = st
		}
	}
	if c.persist.NodeID == "" {
		c.persist.NodeID = uuid.NewString()
	}
	c.persist.BootCount++
	c.motion.Restore(c.persist.LastEventAt)

	maxID, err := c.queue.Restore()
	if err != nil {
		c.obs.LogError("queue_restore_failed", err)
		c.diag.RecordFailure(err)
	}
	c.persist.ObservePayloadID(maxID)
	c.queue.OnSettled(c.onSettled)
	c.adoptSpool()

	c.diag.Update(func(s *diagnostics.Status) {
		s.NodeID = c.persist.NodeID
		s.State = c.state.String()
		s.QueueDepth = c.queue.Len()
	})
	c.obs.LogInfo("node_boot",
		ports.F("node_id", c.persist.NodeID),
		ports.F("boot_count", c.persist.BootCount),
		ports.F("queued", c.queue.Len()))
}

// Run boots the controller and loops until ctx ends.
func (c *Controller) Run(ctx context.Context) error {
	c.Boot()
	reason := ports.WakeExternal
	for {
		plan := c.Cycle(ctx, reason)
		if ctx.Err() != nil {
			break
		}
		next, err := c.Sleep(ctx, plan)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.obs.LogError("sleep_failed", err)
			c.diag.RecordFailure(err)
			if next, err = c.waitAwake(ctx); err != nil {
				break
			}
		}
		reason = next
	}
	c.persistState()
	c.obs.LogInfo("controller_stopped", ports.F("queued", c.queue.Len()))
	return nil
}

// Cycle runs one wake: power check, optional capture, drain. It returns how
// the node should sleep afterwards.
func (c *Controller) Cycle(ctx context.Context, reason ports.WakeReason) SleepPlan {
	c.setState(StateWaking)
	c.applyTasks()
	if reason == ports.WakeMotion {
		c.motion.Woke()
	}

	st, err := c.power.Sample(ctx)
	c.publishPower(st, err)
	c.startLevel = st.Level

	if st.Level == domain.PowerCritical {
		c.obs.LogCritical("wake_power_critical", domain.ErrPowerCritical,
			ports.F("battery_v", st.BatteryVoltage),
			ports.F("queued", c.queue.Len()))
		c.diag.RecordFailure(domain.ErrPowerCritical)
		c.motion.Clear()
		if err := c.drain(ctx); err != nil && ctx.Err() == nil {
			c.obs.LogError("emergency_drain_failed", err)
		}
		return c.plan(true)
	}

	if ev, ok := c.takeEvent(reason); ok {
		if !c.power.BudgetFor(domain.CaptureOp()) {
			c.obs.LogInfo("capture_skipped_budget",
				ports.F("trigger", ev.Source.String()),
				ports.F("level", st.Level.String()))
		} else {
			if !c.capture(ctx, ev) {
				return c.plan(false)
			}
			if _, err := c.checkpoint(ctx); errors.Is(err, domain.ErrPowerCritical) {
				return c.emergency()
			}
		}
	}

	if err := c.drain(ctx); err != nil {
		if errors.Is(err, domain.ErrPowerCritical) {
			return c.emergency()
		}
		if ctx.Err() == nil {
			c.obs.LogError("drain_failed", err)
		}
	}
	return c.plan(false)
}

// Sleep stores state, arms the wake sources for plan and blocks until one
// fires. A pending capture cancels any non-emergency sleep. Deep sleep is
// only entered with an empty queue and no power sample in flight; otherwise
// it is downgraded to a doze.
func (c *Controller) Sleep(ctx context.Context, plan SleepPlan) (ports.WakeReason, error) {
	if plan.Kind != SleepEmergency && c.motion.Pending() {
		return ports.WakeMotion, nil
	}
	if plan.Kind == SleepNone {
		return ports.WakeExternal, nil
	}
	if plan.Kind == SleepDeep && !c.deepSleepAllowed() {
		plan = SleepPlan{Kind: SleepDoze, Timer: minDuration(plan.Timer, c.cfg.RetryInterval), ArmMotion: true}
	}

	c.setState(StateSleeping)
	for _, fn := range c.beforeSleep {
		fn(ctx)
	}
	c.persistState()

	if err := c.arm(plan); err != nil {
		c.obs.LogError("wake_arm_failed", err, ports.F("sleep", plan.Kind.String()))
		if err = c.arm(plan); err != nil {
			fault := fmt.Errorf("arm %s sleep: %w", plan.Kind, errors.Join(domain.ErrNoWakeSource, err))
			c.obs.LogCritical("no_wake_source", fault, ports.F("fallback", c.cfg.NoWakeFallback.String()))
			c.diag.RecordFailure(fault)
			c.wakeFault = true
			c.diag.Update(func(s *diagnostics.Status) {
				s.Fault = fault.Error()
				s.LastSleep = "awake"
				s.NextWakeIn = c.cfg.NoWakeFallback
			})
			return c.waitAwake(ctx)
		}
	}

	if plan.ArmMotion && c.motion.Pending() {
		// Edge landed between the pending check and arming.
		return ports.WakeMotion, nil
	}

	c.lastPlan = plan
	clearFault := c.wakeFault
	c.wakeFault = false
	c.diag.Update(func(s *diagnostics.Status) {
		if clearFault {
			s.Fault = ""
		}
		s.LastSleep = plan.Kind.String()
		s.NextWakeIn = plan.Timer
	})
	c.obs.IncCounter("aegis_sleeps_total", 1)
	c.obs.LogInfo("sleep_enter",
		ports.F("sleep", plan.Kind.String()),
		ports.F("timer", plan.Timer.String()),
		ports.F("motion", plan.ArmMotion),
		ports.F("queued", c.queue.Len()))

	c.motion.Sleeping()
	reason, err := c.wake.Sleep(ctx)
	if err != nil {
		return 0, fmt.Errorf("sleep: %w", err)
	}
	return reason, nil
}

func (c *Controller) deepSleepAllowed() bool {
	return c.queue.Len() == 0 && !c.motion.Pending() && !c.manual && !c.power.Sampling()
}

func (c *Controller) plan(critical bool) SleepPlan {
	if critical {
		return SleepPlan{Kind: SleepEmergency, Timer: c.cfg.EmergencyWakeInterval}
	}
	if c.motion.Pending() || c.manual {
		return SleepPlan{Kind: SleepNone}
	}
	if c.queue.Len() == 0 {
		return SleepPlan{Kind: SleepDeep, Timer: c.cfg.WakeInterval, ArmMotion: true}
	}
	timer := minDuration(c.cfg.RetryInterval, c.cfg.WakeInterval)
	if next, ok := c.queue.NextEligible(); ok {
		if d := next.Sub(c.now()); d > 0 && d < timer {
			timer = d
		}
	}
	return SleepPlan{Kind: SleepDoze, Timer: timer, ArmMotion: true}
}

func (c *Controller) emergency() SleepPlan {
	c.setState(StateEmergency)
	c.persist.EmergencyCount++
	dropped := c.queue.DiscardRoutineOlderThan(c.cfg.EmergencyRoutineTTL)
	c.motion.Clear()
	c.diag.RecordFailure(domain.ErrPowerCritical)
	c.diag.Update(func(s *diagnostics.Status) { s.QueueDepth = c.queue.Len() })
	c.obs.IncCounter("aegis_emergencies_total", 1)
	c.obs.LogCritical("power_emergency", domain.ErrPowerCritical,
		ports.F("discarded", dropped),
		ports.F("queued", c.queue.Len()),
		ports.F("emergency_count", c.persist.EmergencyCount))
	return c.plan(true)
}

func (c *Controller) takeEvent(reason ports.WakeReason) (domain.CaptureEvent, bool) {
	if at, ok := c.motion.Take(); ok {
		c.persist.LastEventAt = at
		return domain.CaptureEvent{Timestamp: at, Source: domain.TriggerMotion}, true
	}
	if c.manual {
		c.manual = false
		return domain.CaptureEvent{Timestamp: c.now(), Source: domain.TriggerManual}, true
	}
	if reason == ports.WakeTimer && c.cfg.CaptureOnTimer {
		return domain.CaptureEvent{Timestamp: c.now(), Source: domain.TriggerTimer}, true
	}
	return domain.CaptureEvent{}, false
}

func (c *Controller) capture(ctx context.Context, ev domain.CaptureEvent) bool {
	c.setState(StateCapturing)
	frame, ok, err := c.camera.Capture(ctx)
	if err != nil || !ok {
		cause := domain.ErrCaptureFailed
		if err != nil {
			cause = errors.Join(domain.ErrCaptureFailed, err)
		}
		cause = fmt.Errorf("%s trigger: %w", ev.Source, cause)
		c.obs.LogError("CAPTURE_FAILED", cause)
		c.obs.IncCounter("aegis_capture_failures_total", 1)
		c.diag.RecordFailure(cause)
		return false
	}

	c.setState(StateEnqueued)
	ev.SequenceID = c.persist.AllocSequenceID()
	c.enqueue(ev, frame)
	return true
}

func (c *Controller) enqueue(ev domain.CaptureEvent, frame domain.Frame) {
	p := domain.Payload{
		ID:         c.persist.AllocPayloadID(),
		SequenceID: ev.SequenceID,
		Bytes:      frame.Bytes,
		Size:       frame.Size,
		Priority:   domain.PriorityRoutine,
		CreatedAt:  c.now(),
	}
	if p.Size == 0 {
		p.Size = len(frame.Bytes)
	}
	ttl := c.cfg.RoutineDeadline
	if ev.Source == domain.TriggerMotion {
		p.Priority = domain.PriorityAlert
		ttl = c.cfg.AlertDeadline
	}
	if ttl > 0 {
		p.Deadline = p.CreatedAt.Add(ttl)
	}

	if c.storage != nil {
		path, err := c.storage.Save(frame)
		if err != nil {
			c.obs.LogError("spool_save_failed", err, ports.F("payload", uint64(p.ID)))
		} else {
			p.StoragePath = path
		}
	}

	c.captures++
	c.obs.IncCounter("aegis_captures_total", 1)
	if err := c.queue.Enqueue(p); err != nil {
		c.obs.LogError("enqueue_failed", err, ports.F("payload", uint64(p.ID)))
		c.diag.RecordFailure(err)
	} else {
		c.obs.LogInfo("capture_enqueued",
			ports.F("payload", uint64(p.ID)),
			ports.F("sequence", ev.SequenceID),
			ports.F("trigger", ev.Source.String()),
			ports.F("priority", p.Priority.String()),
			ports.F("bytes", p.Size))
	}
	c.diag.Update(func(s *diagnostics.Status) {
		s.Captures = c.captures
		s.Coalesced = c.motion.Coalesced()
		s.QueueDepth = c.queue.Len()
	})
}

// checkpoint re-samples power before every send. A drop into CRITICAL during
// a cycle that started above it stops the drain.
func (c *Controller) checkpoint(ctx context.Context) (domain.PowerState, error) {
	st, err := c.power.Sample(ctx)
	c.publishPower(st, err)
	if st.Level == domain.PowerCritical && c.startLevel != domain.PowerCritical {
		return st, fmt.Errorf("battery %.2fV: %w", st.BatteryVoltage, domain.ErrPowerCritical)
	}
	return st, nil
}

// drain makes delivery passes until the queue empties, no link is up, the
// drain budget runs out, nothing is eligible, or a new capture is pending.
func (c *Controller) drain(ctx context.Context) error {
	if c.queue.Len() == 0 {
		return nil
	}
	c.setState(StateDraining)
	pass := transmit.Pass{
		Chooser:    c.chooser,
		Checkpoint: c.checkpoint,
		Deadline:   c.now().Add(c.cfg.DrainBudget),
	}
	defer c.diag.Update(func(s *diagnostics.Status) { s.QueueDepth = c.queue.Len() })

	for c.queue.Len() > 0 {
		rep, err := c.queue.Attempt(ctx, pass)
		if err != nil {
			return err
		}
		if rep.NoLink || rep.OutOfTime || rep.Delivered+rep.Failed == 0 {
			return nil
		}
		if c.motion.Pending() {
			return nil
		}
	}
	return nil
}

func (c *Controller) arm(plan SleepPlan) error {
	var (
		errs  []error
		armed int
	)
	if err := c.wake.ArmWake(plan.Timer); err != nil {
		errs = append(errs, fmt.Errorf("timer: %w", err))
	} else {
		armed++
	}
	if plan.ArmMotion {
		if err := c.wake.ArmEdgeWake(c.cfg.MotionPin, *c.cfg.MotionRisingEdge); err != nil {
			errs = append(errs, fmt.Errorf("motion pin %d: %w", c.cfg.MotionPin, err))
		} else {
			armed++
		}
	}
	if armed == 0 {
		return errors.Join(errs...)
	}
	if len(errs) > 0 {
		c.obs.LogError("wake_source_partial", errors.Join(errs...))
	}
	return nil
}

func (c *Controller) waitAwake(ctx context.Context) (ports.WakeReason, error) {
	t := time.NewTimer(c.cfg.NoWakeFallback)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-t.C:
		return ports.WakeTimer, nil
	}
}

func (c *Controller) applyTasks() {
	if c.tasks == nil {
		return
	}
	for _, t := range c.tasks.Drain() {
		switch t.Kind {
		case remote.KindManualCapture:
			c.manual = true
		case remote.KindMotionCooldown:
			c.cfg.MotionCooldown = t.Duration
			c.motion.SetCooldown(t.Duration)
		case remote.KindWakeInterval:
			if t.Duration > c.cfg.EmergencyWakeInterval {
				c.obs.LogError("override_rejected",
					fmt.Errorf("wake_interval %s exceeds emergency_wake_interval %s", t.Duration, c.cfg.EmergencyWakeInterval),
					ports.F("task", t.Kind.String()))
				continue
			}
			c.cfg.WakeInterval = t.Duration
		case remote.KindDrainBudget:
			c.cfg.DrainBudget = t.Duration
		case remote.KindCaptureOnTimer:
			c.cfg.CaptureOnTimer = t.Enabled
		default:
			continue
		}
		c.obs.LogInfo("override_applied", ports.F("task", t.Kind.String()))
	}
}

func (c *Controller) onSettled(p domain.Payload, _ domain.Outcome) {
	if c.storage == nil || p.StoragePath == "" {
		return
	}
	if err := c.storage.Remove(p.StoragePath); err != nil {
		c.obs.LogError("spool_remove_failed", err, ports.F("path", p.StoragePath))
	}
}

// adoptSpool enqueues spooled frames that no journaled payload refers to,
// which happens when the journal was lost or disabled.
func (c *Controller) adoptSpool() {
	if c.storage == nil {
		return
	}
	paths, err := c.storage.ListPending()
	if err != nil {
		c.obs.LogError("spool_list_failed", err)
		return
	}
	known := make(map[string]struct{}, c.queue.Len())
	for _, p := range c.queue.Snapshot() {
		if p.StoragePath != "" {
			known[p.StoragePath] = struct{}{}
		}
	}
	var adopted int
	for _, path := range paths {
		if _, ok := known[path]; ok {
			continue
		}
		frame, err := c.storage.Load(path)
		if err != nil {
			c.obs.LogError("spool_load_failed", err, ports.F("path", path))
			continue
		}
		p := domain.Payload{
			ID:          c.persist.AllocPayloadID(),
			SequenceID:  c.persist.AllocSequenceID(),
			Bytes:       frame.Bytes,
			Size:        len(frame.Bytes),
			Priority:    domain.PriorityRoutine,
			CreatedAt:   c.now(),
			StoragePath: path,
		}
		if c.cfg.RoutineDeadline > 0 {
			p.Deadline = p.CreatedAt.Add(c.cfg.RoutineDeadline)
		}
		if err := c.queue.Enqueue(p); err != nil {
			c.obs.LogError("spool_adopt_failed", err, ports.F("path", path))
			break
		}
		adopted++
	}
	if adopted > 0 {
		c.obs.LogInfo("spool_adopted", ports.F("frames", adopted))
	}
}

func (c *Controller) persistState() {
	if c.store == nil {
		return
	}
	c.persist.LastEventAt = c.motion.LastEvent()
	c.persist.LastFailure = c.diag.Status().LastFailure
	if err := c.store.Store(c.persist); err != nil {
		c.obs.LogError("state_store_failed", err)
	}
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	prev := c.state
	c.state = s
	c.obs.SetGauge("aegis_controller_state", float64(s))
	c.diag.Update(func(st *diagnostics.Status) { st.State = s.String() })
	c.obs.LogInfo("state_changed", ports.F("from", prev.String()), ports.F("to", s.String()))
}

func (c *Controller) publishPower(st domain.PowerState, err error) {
	if err != nil {
		c.diag.RecordFailure(err)
	}
	c.diag.Update(func(s *diagnostics.Status) {
		s.Power = st
		s.PowerLevel = st.Level.String()
		if errors.Is(err, domain.ErrADCFault) {
			s.Fault = err.Error()
		}
	})
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
