package mpegts

import "sort"

const pidPAT = 0x0000

// programTable remembers which PIDs carry PMT sections and which program
// each belongs to.
type programTable struct {
	pmtPIDs map[uint16]uint16 // PMT PID -> program number
}

func newProgramTable() *programTable {
	return &programTable{pmtPIDs: make(map[uint16]uint16)}
}

func (t *programTable) addPMT(pid, program uint16) {
	t.pmtPIDs[pid] = program
}

func (t *programTable) isPMT(pid uint16) bool {
	_, ok := t.pmtPIDs[pid]
	return ok
}

func (t *programTable) isPSI(pid uint16) bool {
	return pid == pidPAT || t.isPMT(pid)
}

// assembler buffers packets for one PID until a complete unit can be
// flushed: the next payload-unit start, or a complete PSI section.
type assembler struct {
	pid     uint16
	table   *programTable
	packets []packet
}

// add buffers p and returns the flushed unit, if any. Duplicate packets,
// transport errors, and unsignaled continuity jumps discard state the same
// way a hardware demuxer would: silently, keeping the stream alive.
func (a *assembler) add(p packet) []packet {
	if p.transportErr {
		a.packets = nil
		return nil
	}
	if !p.hasPayload {
		return nil
	}

	if len(a.packets) > 0 && !p.discontinuity {
		prev := a.packets[len(a.packets)-1].cc
		expected := (prev + 1) & 0x0F
		if p.cc != expected {
			if p.cc == prev {
				return nil // duplicate, drop
			}
			a.packets = nil // unsignaled discontinuity
		}
	}

	var flushed []packet
	if p.unitStart && len(a.packets) > 0 {
		flushed = a.packets
		a.packets = nil
	}

	a.packets = append(a.packets, p)

	if flushed == nil && a.table.isPSI(a.pid) && psiComplete(joinPayloads(a.packets)) {
		flushed = a.packets
		a.packets = nil
	}
	return flushed
}

func (a *assembler) flush() []packet {
	flushed := a.packets
	a.packets = nil
	return flushed
}

func joinPayloads(packets []packet) []byte {
	var payload []byte
	for _, p := range packets {
		payload = append(payload, p.payload...)
	}
	return payload
}

// reassembly fans packets out to per-PID assemblers.
type reassembly struct {
	table      *programTable
	assemblers map[uint16]*assembler
}

func newReassembly(table *programTable) *reassembly {
	return &reassembly{
		table:      table,
		assemblers: make(map[uint16]*assembler),
	}
}

func (r *reassembly) add(p packet) []packet {
	a, ok := r.assemblers[p.pid]
	if !ok {
		a = &assembler{pid: p.pid, table: r.table}
		r.assemblers[p.pid] = a
	}
	return a.add(p)
}

// drain flushes every assembler, PAT first so draining at EOF still
// resolves PMT PIDs discovered in the same pass.
func (r *reassembly) drain() [][]packet {
	pids := make([]int, 0, len(r.assemblers))
	for pid := range r.assemblers {
		pids = append(pids, int(pid))
	}
	sort.Ints(pids)

	var all [][]packet
	for _, pid := range pids {
		if packets := r.assemblers[uint16(pid)].flush(); len(packets) > 0 {
			all = append(all, packets)
		}
	}
	return all
}

// reset discards every partially assembled unit, used after a seek.
func (r *reassembly) reset() {
	for _, a := range r.assemblers {
		a.packets = nil
	}
}
