// Package configurer reads check declarations from YAML or TOML rule files
// and contributes them to a metadata.Index.
//
// Types are referenced by the name they were registered under. A check is a
// map naming a registered check under "check"; every other key is passed to
// the check factory as an option:
//
//	types:
//	  - type: Customer
//	    guarded: true
//	    fields:
//	      - name: Age
//	        checks:
//	          - check: Range
//	            min: 18
//	            max: 120
//	    methods:
//	      - name: Charge
//	        parameters:
//	          - name: amount
//	            checks:
//	              - check: Min
//	                value: 1
//	        pre:
//	          - expr: amount <= _this.Balance
//
// Pass the Configurer both as a metadata Configurer and as the index's
// ParameterNames so that violations name the declared parameters.
package configurer
