package wavm

import "testing"

func TestResolveWavmioImportRecognizesKnownFields(t *testing.T) {
	cases := map[string]Opcode{
		"wavm_get_globalstate_bytes32": OpInternalGetGlobalStateBytes32,
		"wavm_read_pre_image":          OpInternalReadPreImage,
		"wavm_halt_and_set_finished":   OpInternalHaltAndSetFinished,
	}
	for field, want := range cases {
		got, ok := ResolveWavmioImport("wavmio", field)
		if !ok || got != want {
			t.Errorf("ResolveWavmioImport(wavmio, %s) = (%v, %v), want (%v, true)", field, got, ok, want)
		}
	}
}

func TestResolveWavmioImportRejectsWrongModule(t *testing.T) {
	if _, ok := ResolveWavmioImport("programs", "wavm_read_pre_image"); ok {
		t.Fatal("expected ResolveWavmioImport to reject a non-wavmio module")
	}
}

func TestResolveProgramsImportRecognizesSchedulerPrimitives(t *testing.T) {
	cases := map[string]Opcode{
		"link_module":    OpInternalLinkModule,
		"unlink_module":  OpInternalUnlinkModule,
		"new_program":    OpInternalNewCoThread,
		"pop_program":    OpInternalPopCoThread,
		"get_request":    OpInternalSwitchThread,
		"send_response":  OpInternalSwitchThread,
	}
	for field, want := range cases {
		got, ok := ResolveProgramsImport("programs", field)
		if !ok || got != want {
			t.Errorf("ResolveProgramsImport(programs, %s) = (%v, %v), want (%v, true)", field, got, ok, want)
		}
	}
}

func TestBuildImportTableMapsUnknownImportsToOrdinaryCall(t *testing.T) {
	names := []struct{ Module, Field string }{
		{Module: "wavmio", Field: "wavm_read_pre_image"},
		{Module: "env", Field: "some_library_func"},
	}
	table := BuildImportTable(names)
	if table[0] != OpInternalReadPreImage {
		t.Fatalf("table[0] = %v, want OpInternalReadPreImage", table[0])
	}
	if table[1] != OpCall {
		t.Fatalf("table[1] = %v, want OpCall (ordinary cross-module call)", table[1])
	}
}
