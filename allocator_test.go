package regalloc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestAllocator(cfg *Config) *Allocator {
	if cfg == nil {
		cfg = NewConfig().WithVerify(true)
	}
	return NewAllocator(newTestRegInfo(), cfg)
}

func TestNewAllocator(t *testing.T) {
	a := newTestAllocator(nil)
	require.Equal(t, StateIdle, a.State())
	require.Equal(t, int(testNumRegs), len(a.unions))
	require.Equal(t, len(a.unions), len(a.queries))
	require.Equal(t, NewRegSet(testL, testH), a.classSets[testClassNarrow])

	info := newTestRegInfo()
	info.Aliases[testL] = RegSet{}
	requirePanicsBug(t, "invalid RegisterInfo: W aliases L but not vice versa", func() {
		NewAllocator(info, nil)
	})
}

func TestAllocator_Allocate_overlapping(t *testing.T) {
	// A and B overlap and must land on different registers, while C can share either.
	lA := NewLiveRange(vreg(128, testClassInt), seg(0, 10))
	lB := NewLiveRange(vreg(129, testClassInt), seg(5, 15))
	lC := NewLiveRange(vreg(130, testClassInt), seg(20, 30))
	a := newTestAllocator(nil)
	p := &spillPolicy{}
	res, err := a.Allocate(&mockLiveness{ranges: []*LiveRange{lA, lB, lC}}, &fifoQueue{}, p)
	require.NoError(t, err)
	require.Equal(t, StateDone, a.State())
	require.Zero(t, p.calls)

	regA, regB, regC := res.AssignmentOf(lA.V).Reg, res.AssignmentOf(lB.V).Reg, res.AssignmentOf(lC.V).Reg
	require.Equal(t, testR1, regA)
	require.Equal(t, testR2, regB)
	require.Contains(t, []RealReg{testR1, testR2}, regC)
	require.Equal(t, NewRegSet(testR1, testR2), res.UsedRegs)
	require.Empty(t, res.Spilled)
	require.NoError(t, a.Verify())
	require.Equal(t, "v128 -> R1\nv129 -> R2\nv130 -> R1\n", res.String())
}

func TestAllocator_Allocate_allOverlapping(t *testing.T) {
	var lrs []*LiveRange
	for i := 0; i < 4; i++ {
		lrs = append(lrs, NewLiveRange(vreg(VRegID(128+i), testClassInt), seg(ProgramPoint(i), 100)))
	}
	a := newTestAllocator(nil)
	p := &spillPolicy{}
	res, err := a.Allocate(&mockLiveness{ranges: lrs}, &fifoQueue{}, p)
	require.NoError(t, err)
	require.GreaterOrEqual(t, p.calls, 2)

	var assigned, spilled int
	for _, lr := range lrs {
		asg := res.AssignmentOf(lr.V)
		switch {
		case asg.Assigned():
			assigned++
			require.Equal(t, lr, a.LiveRangeOf(lr.V))
		case asg.Spilled:
			spilled++
			require.Nil(t, a.LiveRangeOf(lr.V))
		}
	}
	require.Equal(t, 2, assigned)
	require.Equal(t, 2, spilled)
	require.Equal(t, []VReg{lrs[2].V, lrs[3].V}, res.Spilled)
	require.Equal(t, 2, a.Stats().Rounds)
	require.NoError(t, a.Verify())
}

func TestAllocator_Allocate_fixed(t *testing.T) {
	// R1 is pre-colored over [0,10) and L over [20,30), which also blocks W.
	l := &mockLiveness{
		fixed: []*LiveRange{
			NewLiveRange(FromRealReg(testR1, testClassInt), seg(0, 5)),
			NewLiveRange(FromRealReg(testR1, testClassInt), seg(5, 10)),
			NewLiveRange(FromRealReg(testL, testClassNarrow), seg(20, 30)),
		},
		ranges: []*LiveRange{
			NewLiveRange(vreg(128, testClassInt), seg(8, 12)),
			NewLiveRange(vreg(129, testClassInt), seg(10, 20)),
			NewLiveRange(vreg(130, testClassWide), seg(25, 26)),
		},
	}
	a := newTestAllocator(nil)
	res, err := a.Allocate(l, &fifoQueue{}, &spillPolicy{})
	require.NoError(t, err)
	require.Equal(t, testR2, res.AssignmentOf(l.ranges[0].V).Reg)
	require.Equal(t, testR1, res.AssignmentOf(l.ranges[1].V).Reg)
	require.True(t, res.AssignmentOf(l.ranges[2].V).Spilled)
	require.Equal(t, []Segment{seg(0, 10)}, a.fixed[testR1].Segments)
	require.True(t, a.FixedInterference(l.ranges[2], testW))
	require.False(t, a.FixedInterference(l.ranges[2], testH))
}

func TestAllocator_Allocate_hint(t *testing.T) {
	lr := NewLiveRange(vreg(128, testClassInt), seg(0, 10))
	lr.Hint = testR2
	a := newTestAllocator(nil)
	require.Equal(t, []RealReg{testR2, testR1}, a.AllocationOrder(lr))

	res, err := a.Allocate(&mockLiveness{ranges: []*LiveRange{lr}}, &fifoQueue{}, &spillPolicy{})
	require.NoError(t, err)
	require.Equal(t, testR2, res.AssignmentOf(lr.V).Reg)

	// A hint outside of the class is ignored.
	lr.Hint = testW
	require.Equal(t, []RealReg{testR1, testR2}, a.AllocationOrder(lr))
}

func TestAllocator_Allocate_emptyRange(t *testing.T) {
	lr := &LiveRange{V: vreg(128, testClassInt)}
	a := newTestAllocator(nil)
	res, err := a.Allocate(&mockLiveness{ranges: []*LiveRange{lr}}, &fifoQueue{}, &spillPolicy{})
	require.NoError(t, err)
	require.Equal(t, Assignment{}, res.AssignmentOf(lr.V))
	require.Equal(t, 129, res.NumVRegs())
}

func TestAllocator_Allocate_outOfRegisters(t *testing.T) {
	t.Run("empty class", func(t *testing.T) {
		lr := NewLiveRange(vreg(128, testClassEmpty), seg(0, 10))
		_, err := newTestAllocator(nil).Allocate(&mockLiveness{ranges: []*LiveRange{lr}}, &fifoQueue{}, &spillPolicy{})
		require.True(t, IsOutOfRegisters(err))
		require.EqualError(t, err, "out of registers: no empty register available for v128?")
	})
	t.Run("unknown class", func(t *testing.T) {
		lr := NewLiveRange(vreg(128, 10), seg(0, 10))
		err := newTestAllocator(nil).Seed(&mockLiveness{ranges: []*LiveRange{lr}}, &fifoQueue{})
		require.True(t, IsOutOfRegisters(err))
	})
	t.Run("policy", func(t *testing.T) {
		lrs := []*LiveRange{
			NewLiveRange(vreg(128, testClassWide), seg(0, 10)),
			NewLiveRange(vreg(129, testClassWide), seg(0, 10)),
		}
		p := funcPolicy(func(a *Allocator, lr *LiveRange) (Decision, error) {
			return Decision{}, &OutOfRegistersError{V: lr.V, ClassName: a.Info().ClassName(lr.V.RegClass())}
		})
		_, err := newTestAllocator(nil).Allocate(&mockLiveness{ranges: lrs}, &fifoQueue{}, p)
		require.True(t, IsOutOfRegisters(err))
		require.EqualError(t, err, "allocating v129?: out of registers: no wide register available for v129?")
	})
}

func TestAllocator_Allocate_policyError(t *testing.T) {
	lrs := []*LiveRange{
		NewLiveRange(vreg(128, testClassWide), seg(0, 10)),
		NewLiveRange(vreg(129, testClassWide), seg(0, 10)),
	}
	p := funcPolicy(func(*Allocator, *LiveRange) (Decision, error) {
		return Decision{}, errors.New("boom")
	})
	a := newTestAllocator(nil)
	_, err := a.Allocate(&mockLiveness{ranges: lrs}, &fifoQueue{}, p)
	require.EqualError(t, err, "allocating v129?: boom")
	require.False(t, IsOutOfRegisters(err))
	require.Equal(t, StateDone, a.State())
}

func TestAllocator_Allocate_evict(t *testing.T) {
	// The policy evicts whatever interferes on W, and requeues it.
	low := NewLiveRange(vreg(128, testClassNarrow), seg(0, 10))
	high := NewLiveRange(vreg(129, testClassWide), seg(5, 15))
	p := funcPolicy(func(a *Allocator, lr *LiveRange) (Decision, error) {
		if lr != high {
			return Spilled(), nil
		}
		for _, v := range a.InterferingVRegs(lr, testW) {
			evicted := a.LiveRangeOf(v)
			a.Unassign(evicted)
			a.Requeue(evicted)
		}
		a.InvalidateAll()
		return Assign(testW), nil
	})
	a := newTestAllocator(nil)
	res, err := a.Allocate(&mockLiveness{ranges: []*LiveRange{low, high}}, &fifoQueue{}, p)
	require.NoError(t, err)
	require.Equal(t, testW, res.AssignmentOf(high.V).Reg)
	require.True(t, res.AssignmentOf(low.V).Spilled)
	require.Equal(t, 1, a.Stats().Invalidations)
	require.Equal(t, []RealReg{testW}, res.CalleeSavedUsed)
}

func TestAllocator_Allocate_split(t *testing.T) {
	// v130 can't fit R1 or R2 as a whole, but each of its segments can.
	l := &mockLiveness{ranges: []*LiveRange{
		NewLiveRange(vreg(128, testClassInt), seg(0, 10)),
		NewLiveRange(vreg(129, testClassInt), seg(0, 5), seg(20, 30)),
		NewLiveRange(vreg(130, testClassInt), seg(7, 9), seg(22, 25)),
	}}
	var pieces []*LiveRange
	p := funcPolicy(func(a *Allocator, lr *LiveRange) (Decision, error) {
		for _, s := range lr.Segments {
			piece := NewLiveRange(a.NewVReg(lr.V.RegClass()), s)
			piece.Parent = lr.V
			pieces = append(pieces, piece)
		}
		return Split(pieces...), nil
	})
	a := newTestAllocator(nil)
	res, err := a.Allocate(l, &fifoQueue{}, p)
	require.NoError(t, err)
	require.Equal(t, []VReg{l.ranges[2].V}, res.Split)
	require.Equal(t, Assignment{}, res.AssignmentOf(l.ranges[2].V))
	require.Nil(t, a.LiveRangeOf(l.ranges[2].V))
	require.Len(t, pieces, 2)
	require.Equal(t, VRegID(131), pieces[0].V.ID())
	require.Equal(t, testClassInt, pieces[0].V.RegClass())
	require.Equal(t, testR2, res.AssignmentOf(pieces[0].V).Reg)
	require.Equal(t, testR1, res.AssignmentOf(pieces[1].V).Reg)
	require.Equal(t, 1, a.Stats().Rounds)
	require.NoError(t, a.Verify())
}

func TestAllocator_Allocate_spillReloads(t *testing.T) {
	a1 := NewLiveRange(vreg(128, testClassInt), seg(0, 20))
	a2 := NewLiveRange(vreg(129, testClassInt), seg(0, 10))
	b := NewLiveRange(vreg(130, testClassInt), seg(2, 20))
	b.Uses = []ProgramPoint{2, 15}
	p := funcPolicy(func(a *Allocator, lr *LiveRange) (Decision, error) {
		reload := NewLiveRange(a.NewVReg(lr.V.RegClass()), seg(15, 16))
		reload.Parent, reload.Weight = lr.V, Unspillable
		return Spilled(reload), nil
	})
	a := newTestAllocator(nil)
	res, err := a.Allocate(&mockLiveness{ranges: []*LiveRange{a1, a2, b}}, &fifoQueue{}, p)
	require.NoError(t, err)
	require.True(t, res.AssignmentOf(b.V).Spilled)
	require.Equal(t, testR2, res.AssignmentOf(vreg(131, testClassInt)).Reg)
}

func TestAllocator_Allocate_maxRounds(t *testing.T) {
	// Both registers are taken by pre-colored ranges, and the policy re-splits forever.
	l := &mockLiveness{
		fixed: []*LiveRange{
			NewLiveRange(FromRealReg(testR1, testClassInt), seg(0, 100)),
			NewLiveRange(FromRealReg(testR2, testClassInt), seg(0, 100)),
		},
		ranges: []*LiveRange{NewLiveRange(vreg(128, testClassInt), seg(10, 20))},
	}
	p := funcPolicy(func(a *Allocator, lr *LiveRange) (Decision, error) {
		piece := NewLiveRange(a.NewVReg(lr.V.RegClass()), lr.Segments...)
		piece.Parent = lr.V
		return Split(piece), nil
	})
	a := newTestAllocator(NewConfig().WithMaxRounds(3))
	_, err := a.Allocate(l, &fifoQueue{}, p)
	require.True(t, IsInternalError(err))
	require.Contains(t, err.Error(), "internal compiler error: ")
	require.Contains(t, err.Error(), "gave up after 3 rounds of split or evict")
	require.Equal(t, 4, a.Stats().Rounds)
}

func TestAllocator_Allocate_policyAssignsBusyRegister(t *testing.T) {
	lrs := []*LiveRange{
		NewLiveRange(vreg(128, testClassWide), seg(0, 10)),
		NewLiveRange(vreg(129, testClassWide), seg(0, 10)),
	}
	p := funcPolicy(func(*Allocator, *LiveRange) (Decision, error) { return Assign(testW), nil })
	requirePanicsBug(t, "policy assigned v129? to W which still interferes on W", func() {
		_, _ = newTestAllocator(nil).Allocate(&mockLiveness{ranges: lrs}, &fifoQueue{}, p)
	})
}

func TestAllocator_Seed_contract(t *testing.T) {
	for _, tc := range []struct {
		name   string
		l      *mockLiveness
		expErr string
	}{
		{
			name:   "reserved id",
			l:      &mockLiveness{ranges: []*LiveRange{NewLiveRange(vreg(5, testClassInt), seg(0, 1))}},
			expErr: "v5? uses a reserved id",
		},
		{
			name:   "real register",
			l:      &mockLiveness{ranges: []*LiveRange{NewLiveRange(FromRealReg(testR1, testClassInt), seg(0, 1))}},
			expErr: "r1 is not a virtual register",
		},
		{
			name:   "fixed virtual register",
			l:      &mockLiveness{fixed: []*LiveRange{NewLiveRange(vreg(128, testClassInt), seg(0, 1))}},
			expErr: "fixed range of non real register v128?",
		},
		{
			name: "duplicate",
			l: &mockLiveness{ranges: []*LiveRange{
				NewLiveRange(vreg(128, testClassInt), seg(0, 1)),
				NewLiveRange(vreg(128, testClassInt), seg(4, 5)),
			}},
			expErr: "v128? has more than one live range",
		},
		{
			name: "invalid live range",
			l: &mockLiveness{ranges: []*LiveRange{
				{V: vreg(128, testClassInt), Segments: []Segment{seg(4, 5), seg(0, 1)}},
			}},
			expErr: "invalid live range: v128?: segment 1 [0,1) is not after [4,5)",
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			requirePanicsBug(t, tc.expErr, func() {
				_ = newTestAllocator(nil).Seed(tc.l, &fifoQueue{})
			})
		})
	}

	t.Run("state", func(t *testing.T) {
		a := newTestAllocator(nil)
		require.NoError(t, a.Seed(&mockLiveness{}, &fifoQueue{}))
		require.Equal(t, StateSeeded, a.State())
		requirePanicsBug(t, "Seed called in state seeded", func() { _ = a.Seed(&mockLiveness{}, &fifoQueue{}) })
		requirePanicsBug(t, "Requeue called in state seeded", func() {
			a.Requeue(NewLiveRange(vreg(128, testClassInt), seg(0, 1)))
		})
		_, err := a.Run(&spillPolicy{})
		require.NoError(t, err)
		requirePanicsBug(t, "Run called in state done", func() { _, _ = a.Run(&spillPolicy{}) })
	})
}

func TestAllocator_CheckPhysRegInterference(t *testing.T) {
	a := newTestAllocator(nil)
	low := NewLiveRange(vreg(128, testClassNarrow), seg(0, 10))
	high := NewLiveRange(vreg(129, testClassNarrow), seg(20, 30))
	wide := NewLiveRange(vreg(130, testClassWide), seg(5, 25))
	a.Assign(low, testL)

	// W itself is empty, and the interference is found on its alias.
	require.Equal(t, testL, a.CheckPhysRegInterference(wide, testW))
	require.Equal(t, RealRegInvalid, a.CheckPhysRegInterference(high, testH))
	a.Assign(high, testH)
	// Aliases are probed in ascending order.
	require.Equal(t, testL, a.CheckPhysRegInterference(wide, testW))
	require.Equal(t, []VReg{low.V, high.V}, a.InterferingVRegs(wide, testW))
	require.Equal(t, RealRegInvalid, a.CheckPhysRegInterference(wide, testR1))
}

func TestAllocator_Assign_contract(t *testing.T) {
	t.Run("class", func(t *testing.T) {
		a := newTestAllocator(nil)
		requirePanicsBug(t, "W is not allocatable for int", func() {
			a.Assign(NewLiveRange(vreg(128, testClassInt), seg(0, 1)), testW)
		})
	})
	t.Run("twice", func(t *testing.T) {
		a := newTestAllocator(nil)
		lr := NewLiveRange(vreg(128, testClassInt), seg(0, 1))
		a.Assign(lr, testR1)
		requirePanicsBug(t, "assigning v128? to R2 while it's assigned to R1", func() { a.Assign(lr, testR2) })
	})
	t.Run("alias interference", func(t *testing.T) {
		a := newTestAllocator(nil)
		a.Assign(NewLiveRange(vreg(128, testClassNarrow), seg(0, 10)), testH)
		requirePanicsBug(t, "assigning v129? to W interferes on H", func() {
			a.Assign(NewLiveRange(vreg(129, testClassWide), seg(5, 6)), testW)
		})
	})
	t.Run("pre-colored alias", func(t *testing.T) {
		a := newTestAllocator(nil)
		l := &mockLiveness{fixed: []*LiveRange{NewLiveRange(FromRealReg(testL, testClassNarrow), seg(0, 10))}}
		require.NoError(t, a.Seed(l, &fifoQueue{}))
		wide := NewLiveRange(vreg(128, testClassWide), seg(5, 6))
		require.Equal(t, testL, a.CheckPhysRegInterference(wide, testW))
		requirePanicsBug(t, "assigning v128? to W overlaps a pre-colored register", func() { a.Assign(wide, testW) })
	})
	t.Run("unassign unassigned", func(t *testing.T) {
		a := newTestAllocator(nil)
		requirePanicsBug(t, "unassigning v128? which is not assigned", func() {
			a.Unassign(NewLiveRange(vreg(128, testClassInt), seg(0, 1)))
		})
	})
	t.Run("unassign other range", func(t *testing.T) {
		a := newTestAllocator(nil)
		a.Assign(NewLiveRange(vreg(128, testClassInt), seg(0, 1)), testR1)
		requirePanicsBug(t, "unassigning v128? with a live range which was not assigned", func() {
			a.Unassign(NewLiveRange(vreg(128, testClassInt), seg(0, 1)))
		})
	})
	t.Run("reentrant", func(t *testing.T) {
		a := newTestAllocator(nil)
		victim := NewLiveRange(vreg(128, testClassInt), seg(0, 1))
		a.Assign(victim, testR1)
		// RealRegName is called back while Assign formats its checks.
		name := a.regInfo.RealRegName
		a.regInfo.RealRegName = func(r RealReg) string {
			a.Unassign(victim)
			return name(r)
		}
		requirePanicsBug(t, "reentrant call to Unassign", func() {
			a.Assign(NewLiveRange(vreg(129, testClassInt), seg(4, 5)), testR2)
		})
	})
}

func TestAllocator_Assign_Unassign_roundTrip(t *testing.T) {
	a := newTestAllocator(nil)
	a.Assign(NewLiveRange(vreg(128, testClassNarrow), seg(0, 10), seg(30, 40)), testL)
	a.Assign(NewLiveRange(vreg(129, testClassNarrow), seg(10, 20)), testL)

	lr := NewLiveRange(vreg(130, testClassNarrow), seg(20, 30), seg(45, 50))
	a.vregState(lr.V)
	before := a.unions[testL].segments()
	beforeMap := append([]vregState(nil), a.vregs...)

	a.Assign(lr, testL)
	require.Equal(t, testL, a.AssignmentOf(lr.V).Reg)
	require.Equal(t, testL, a.Unassign(lr))

	if diff := cmp.Diff(before, a.unions[testL].segments()); diff != "" {
		t.Fatalf("union changed (-before +after):\n%s", diff)
	}
	for i := range beforeMap {
		require.Equal(t, beforeMap[i].assignment, a.vregs[i].assignment, i)
	}
	require.Equal(t, Assignment{}, a.AssignmentOf(lr.V))
}

func TestAllocator_queryCache(t *testing.T) {
	a := newTestAllocator(nil)
	lA := NewLiveRange(vreg(128, testClassInt), seg(0, 10))
	lB := NewLiveRange(vreg(129, testClassInt), seg(5, 15))
	a.Assign(lA, testR1)

	require.Equal(t, testR1, a.CheckPhysRegInterference(lB, testR1))
	require.Equal(t, Stats{Probes: 1, Scans: 1}, a.Stats())

	// Nothing changed: the cached result is reused.
	require.Equal(t, testR1, a.CheckPhysRegInterference(lB, testR1))
	require.Equal(t, Stats{Probes: 2, Scans: 1, CacheHits: 1}, a.Stats())

	// After the bulk invalidation, the union must be scanned again.
	a.InvalidateAll()
	require.Equal(t, testR1, a.CheckPhysRegInterference(lB, testR1))
	require.Equal(t, Stats{Probes: 3, Scans: 2, CacheHits: 1, Invalidations: 1}, a.Stats())

	// Unassign changes the union, so a stale hit is never returned.
	a.Unassign(lA)
	require.Equal(t, RealRegInvalid, a.CheckPhysRegInterference(lB, testR1))
	require.Equal(t, 3, a.Stats().Scans)

	// Assign grows the union, which is also observed without InvalidateAll.
	a.Assign(NewLiveRange(vreg(130, testClassInt), seg(14, 20)), testR1)
	require.Equal(t, testR1, a.CheckPhysRegInterference(lB, testR1))
	require.Equal(t, 4, a.Stats().Scans)

	ifs := a.Interferences(lB, testR1)
	require.Equal(t, []Interference{{Segment: seg(14, 20), Owner: vreg(130, testClassInt)}}, ifs)
	require.Equal(t, 5, a.Stats().Scans)
}

func TestAllocator_AddLiveIns(t *testing.T) {
	l := &mockLiveness{
		blocks: []BlockBoundary{
			{ID: 2, Start: 20, End: 30},
			{ID: 0, Start: 0, End: 10},
			{ID: 1, Start: 10, End: 20},
		},
		ranges: []*LiveRange{
			NewLiveRange(vreg(128, testClassInt), seg(0, 15)),
			NewLiveRange(vreg(129, testClassInt), seg(5, 11)),
			NewLiveRange(vreg(130, testClassInt), seg(16, 30)),
		},
	}
	a := newTestAllocator(nil)
	res, err := a.Allocate(l, &fifoQueue{}, &spillPolicy{})
	require.NoError(t, err)
	require.Equal(t, map[int]RegSet{
		0: NewRegSet(testR1),
		1: NewRegSet(testR1, testR2),
		2: NewRegSet(testR1),
	}, res.LiveIns)
}

func TestAllocator_AddLiveIns_reload(t *testing.T) {
	a1 := NewLiveRange(vreg(128, testClassInt), seg(0, 20))
	a2 := NewLiveRange(vreg(129, testClassInt), seg(0, 10))
	b := NewLiveRange(vreg(130, testClassInt), seg(2, 20))
	b.Uses = []ProgramPoint{2, 10}
	l := &mockLiveness{
		blocks: []BlockBoundary{{ID: 0, Start: 0, End: 10}, {ID: 1, Start: 10, End: 20}},
		ranges: []*LiveRange{a1, a2, b},
	}
	// b is reloaded for its use at the first instruction of block 1.
	p := funcPolicy(func(a *Allocator, lr *LiveRange) (Decision, error) {
		reload := NewLiveRange(a.NewVReg(lr.V.RegClass()), seg(10, 11))
		reload.Parent, reload.Weight = lr.V, Unspillable
		return Spilled(reload), nil
	})
	a := newTestAllocator(nil)
	res, err := a.Allocate(l, &fifoQueue{}, p)
	require.NoError(t, err)
	require.Equal(t, testR2, res.AssignmentOf(vreg(131, testClassInt)).Reg)
	require.Equal(t, map[int]RegSet{
		0: NewRegSet(testR1, testR2),
		1: NewRegSet(testR1),
	}, res.LiveIns)
}

func TestAllocator_calleeSavedUsed(t *testing.T) {
	a := newTestAllocator(nil)
	require.Equal(t, []RealReg{testW}, a.calleeSavedUsed(NewRegSet(testH)))
	require.Equal(t, []RealReg{testW}, a.calleeSavedUsed(NewRegSet(testW, testL)))
	require.Empty(t, a.calleeSavedUsed(NewRegSet(testR1)))
}

func TestAllocator_Verify(t *testing.T) {
	a := newTestAllocator(nil)
	lr := NewLiveRange(vreg(128, testClassInt), seg(0, 10))
	a.Assign(lr, testR1)
	require.NoError(t, a.Verify())

	// Corrupt the union behind the register map.
	a.unions[testR1].remove(lr)
	a.unions[testR2].insert(lr)
	err := a.Verify()
	require.Error(t, err)
	require.Contains(t, err.Error(), "2 errors occurred")
	require.Contains(t, err.Error(), "R1: interval union is [], but the register map gives")
	require.Contains(t, err.Error(), "R2: interval union is")
}

func TestAllocator_Verify_aliases(t *testing.T) {
	a := newTestAllocator(nil)
	narrow := NewLiveRange(vreg(128, testClassNarrow), seg(0, 10))
	wide := NewLiveRange(vreg(129, testClassWide), seg(5, 6))
	a.Assign(narrow, testL)
	// Bypass Assign's checks.
	a.unions[testW].insert(wide)
	a.vregState(wide.V).lr = wide
	a.vregState(wide.V).assignment = Assignment{Reg: testW}

	err := a.Verify()
	require.Error(t, err)
	require.Contains(t, err.Error(), "[5,6) of v129? on W overlaps [0,10) of v128? on L")
}

func TestAllocator_Verify_fixedAliases(t *testing.T) {
	a := newTestAllocator(nil)
	l := &mockLiveness{fixed: []*LiveRange{NewLiveRange(FromRealReg(testL, testClassNarrow), seg(0, 10))}}
	require.NoError(t, a.Seed(l, &fifoQueue{}))
	wide := NewLiveRange(vreg(128, testClassWide), seg(5, 6))
	// Bypass Assign's checks.
	a.unions[testW].insert(wide)
	a.vregState(wide.V).lr = wide
	a.vregState(wide.V).assignment = Assignment{Reg: testW}

	err := a.Verify()
	require.Error(t, err)
	require.Contains(t, err.Error(), "v128? [5,6) overlaps the pre-colored L")
}

func TestAllocator_Reset(t *testing.T) {
	a := newTestAllocator(nil)
	l := &mockLiveness{
		fixed:  []*LiveRange{NewLiveRange(FromRealReg(testR1, testClassInt), seg(0, 100))},
		ranges: []*LiveRange{NewLiveRange(vreg(128, testClassInt), seg(0, 10))},
	}
	res, err := a.Allocate(l, &fifoQueue{}, &spillPolicy{})
	require.NoError(t, err)
	require.Equal(t, testR2, res.AssignmentOf(l.ranges[0].V).Reg)

	gen := a.gen
	a.Reset()
	require.Equal(t, StateIdle, a.State())
	require.NotEqual(t, gen, a.gen)
	require.Equal(t, Stats{}, a.Stats())
	require.Empty(t, a.String())
	for i := range a.unions {
		require.True(t, a.unions[i].empty())
		require.Nil(t, a.fixed[i])
	}

	// Reusable for another function without the pre-colored range.
	l.fixed = nil
	res, err = a.Allocate(l, &fifoQueue{}, &spillPolicy{})
	require.NoError(t, err)
	require.Equal(t, testR1, res.AssignmentOf(l.ranges[0].V).Reg)
	require.Equal(t, "R1: [0,10)@v128\n", a.String())
	require.Equal(t, VReg(129), a.NewVReg(testClassInt))
}

func TestState_String(t *testing.T) {
	require.Equal(t, "allocating", StateAllocating.String())
	require.Equal(t, "State(9)", State(9).String())
	require.Equal(t, "spilled", Assignment{Spilled: true}.String())
	require.Equal(t, "unassigned", Assignment{}.String())
	require.Equal(t, "r3", Assignment{Reg: 3}.String())
}
