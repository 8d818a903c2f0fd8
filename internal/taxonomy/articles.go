package taxonomy

// Generated from the negotiation text's key element vocabulary. Order
// within an article follows the text.
var articles = []Article{
	{
		Number: "1",
		Title:  "Objectives and principles",
		KeyElements: []string{
			"objectives - life cycle approach",
			"objectives - protection of health and environment",
			"objective - plastic pollution",
			"objective - marine environment",
			"principles - rio declaration",
			"principles - right to development and equity",
			"principles - common but differentiated responsibility",
			"principles - state sovereignty and international cooperation",
			"principles - precautionary and polluter-pays principles",
			"principles - support for developing countries",
			"principles - use of best available science, indigenous and traditional knowledge",
		},
	},
	{
		Number: "2",
		Title:  "Definitions",
		KeyElements: []string{
			"party",
			"plastic",
			"plastic pollution",
			"plastic product",
			"plastic waste",
			"regional economic integration organization",
		},
	},
	{
		Number: "3",
		Title:  "Plastic products and chemicals of concern",
		KeyElements: []string{
			"plastic products - national level",
			"Plastic products criteria",
			"products - measures",
			"products - monitoring",
			"products - global measures",
			"products - submission of proposal",
			"products - information need",
			"products - subsidiary body or review committee",
			"products - review committee",
			"products - guidance",
			"products - conference of the parties",
			"products - trade",
			"products - list of products",
			"chemicals - measures",
			"chemicals - traceability",
			"chemicals - list",
			"chemicals - criteria",
			"chemicals - risk management",
			"chemicals - plans",
			"chemicals - report",
			"chemicals - submissions",
			"chemicals - information may be as annex/criteria",
			"chemicals - process",
			"chemicals - technical and scientific committee",
			"chemicals - conference of the parties",
			"chemicals - dip con",
			"chemicals - annex list of chemicals",
			"chemicals - annex risk management",
		},
	},
	{
		Number: "4",
		Title:  "Exemptions",
		KeyElements: []string{
			"registration and justification of exemptions",
			"phase-out dates",
			"statement of need",
			"public registry and transparency",
			"duration and expiry",
			"extension process and criteria",
			"availability of alternatives",
			"withdrawal and reapplication",
		},
	},
	{
		Number: "5",
		Title:  "Product design",
		KeyElements: []string{
			"product design - design criteria",
			"product design - circular economy principles",
			"product design - sustainable alternatives and innovation",
			"sectoral guidance development",
			"non-discrimination clause trade",
			"alignment with international standards",
		},
	},
	{
		Number: "6",
		Title:  "Supply and sustainable production",
		KeyElements: []string{
			"global production target",
			"lifecycle management measures",
			"data reporting obligations",
			"reporting format and guidance",
			"review mechanism for target adjustment",
		},
	},
	{
		Number: "7",
		Title:  "Releases and leakages",
		KeyElements: []string{
			"prevent plastic releases and leakages",
			"prevent plastic pellets release and leakages",
			"manage fishing gear pollution",
			"research and monitoring – leakage pathways",
			"promote best available technologies and practices",
			"guidance by conference of parties (cop)",
		},
	},
	{
		Number: "8",
		Title:  "Waste management",
		KeyElements: []string{
			"consider national circumstances",
			"ensure environmentally sound management (esm)",
			"infrastructure development",
			"promote circular economy approaches",
			"prevent littering, open dumping/burning, ocean dumping",
			"fishing gear waste",
			"set national collection and recycling targets",
			"just transition - waste sector",
			"behavior change and awareness",
			"transboundary movement controls",
			"promote extended producer responsibility",
			"support implementation by conference of parties (cop)",
		},
	},
	{
		Number: "9",
		Title:  "Existing plastic pollution",
		KeyElements: []string{
			"identify and monitor plastic pollution hotspots",
			"pollution removal and cleanup",
			"use of science and local knowledge",
			"stakeholder engagement and knowledge exchange",
		},
	},
	{
		Number: "10",
		Title:  "Just transition",
		KeyElements: []string{
			"just transition - general principles and considering national context",
			"just transition - affected groups and workes",
			"just transition - monitoring and reporting of transition measures",
		},
	},
	{
		Number: "11",
		Title:  "Financing",
		KeyElements: []string{
			"provision of financial support",
			"conditions for support - prioritization and needs",
			"structure and operation of the mechanism",
			"funding sources and replenishment",
			"funding uses - eligible activities",
		},
	},
	{
		Number: "12",
		Title:  "Capacity building and technology transfer",
		KeyElements: []string{
			"capacity building and technical assistance",
			"technology transfer - terms and delivery",
		},
	},
	{
		Number: "13",
		Title:  "International cooperation",
		KeyElements: []string{
			"international cooperation and coordination",
		},
	},
	{
		Number: "14",
		Title:  "Implementation and compliance",
		KeyElements: []string{
			"establish compliance & implementation committee",
			"committee procedures and reporting",
		},
	},
	{
		Number: "15",
		Title:  "National plans",
		KeyElements: []string{
			"national implementation plans",
			"stakeholder engagement in planning",
			"review and update of national plans",
		},
	},
	{
		Number: "16",
		Title:  "Reporting",
		KeyElements: []string{
			"national reporting obligations",
			"report format and timeline",
			"public access and transparency",
		},
	},
	{
		Number: "17",
		Title:  "Effectiveness evaluation",
		KeyElements: []string{
			"evaluation of convention effectiveness",
			"basis for evaluation",
			"modalities of evaluation process",
		},
	},
	{
		Number: "18",
		Title:  "Information exchange",
		KeyElements: []string{
			"exchange of best practices and policy knowledge",
			"sharing scientific, traditional and indigenous knowledge",
			"information on risks and impacts of plastic pollution",
			"national focal points for information coordination",
			"online clearinghouse managed by the secretariat",
			"use of existing platforms and networks",
			"research, technologies and innovation exchange",
			"protection of confidential information",
		},
	},
	{
		Number: "19",
		Title:  "Awareness, education and exchange",
		KeyElements: []string{
			"public awareness and environmental education",
			"access to information and knowledge",
		},
	},
	{
		Number: "20",
		Title:  "Research and monitoring",
		KeyElements: []string{
			"scientific research and data monitoring",
			"inclusion of traditional and local knowledge",
			"standardized monitoring methods and approaches",
			"capacity-building and multi-level training",
		},
	},
	{
		Number: "21",
		Title:  "Health",
		KeyElements: []string{
			"human health considerations",
		},
	},
	{
		Number: "22",
		Title:  "Conference of the parties",
		KeyElements: []string{
			"conference of the parties – mandate and governance functions of the cop",
			"conference of the parties – rules of procedure and decision-making at cop meetings",
			"conference of the parties – frequency and modalities of cop sessions",
			"conference of the parties – authority to establish subsidiary bodies",
			"conference of the parties – engagement with international and non-state actors",
			"conference of the parties – observer participation and objection rules",
		},
	},
	{
		Number: "23",
		Title:  "Subsidiary bodies",
		KeyElements: []string{
			"establishment of scientific and technical subsidiary bodies",
			"committees, panels, tors and working arrangements",
		},
	},
	{
		Number: "24",
		Title:  "Secretariat",
		KeyElements: []string{
			"secretariat – functions and mandate",
			"support for conference of the parties meetings and parties",
			"reporting and documentation duties",
			"coordination with other international bodies",
			"hosting and institutional arrangements",
			"unep executive director as default secretariat",
		},
	},
	{
		Number: "25",
		Title:  "Settlement of disputes",
		KeyElements: []string{
			"cooperation and peaceful settlement of disputes",
			"declaration of compulsory arbitration and icj jurisdiction by parties",
			"declarations by regional economic integration organizations",
			"duration and revocation of declarations",
			"effect of expiry or revocation on ongoing proceedings",
			"conciliation procedures by conference of the parties",
		},
	},
	{
		Number: "26",
		Title:  "Amendments to the convention",
		KeyElements: []string{
			"procedure for amending the convention",
			"timeline and entry into force for amendments",
			"role of the depositary in amendment communication",
		},
	},
	{
		Number: "27",
		Title:  "Adoption and amendment of annexes",
		KeyElements: []string{
			"annexes as integral part of the convention",
			"scope of annexes limited to procedural and technical matters",
			"procedure for adoption and non-acceptance of new annexes",
			"amendment of annexes follows same procedure as adoption",
			"special provisions for parties with declarations (art. 27)",
		},
	},
	{
		Number: "28",
		Title:  "Right to vote",
		KeyElements: []string{
			"voting rights of parties and organizations",
		},
	},
	{
		Number: "29",
		Title:  "Signature",
		KeyElements: []string{
			"opening of the convention for signature",
			"locations and timeframe for signing the convention",
		},
	},
	{
		Number: "30",
		Title:  "Ratification, acceptance, approval or accession",
		KeyElements: []string{
			"ratification, acceptance, approval, and accession",
			"obligations of regional economic integration organizations",
			"declaration of competence",
		},
	},
	{
		Number: "31",
		Title:  "Entry into force",
		KeyElements: []string{
			"conditional entry into force of additional annexes and amendments",
			"conditions for entry into force of the convention",
			"entry into force for later ratifiers",
		},
	},
	{
		Number: "32",
		Title:  "Reservations",
		KeyElements: []string{
			"reservations - no reservations allowed",
		},
	},
	{
		Number: "33",
		Title:  "Withdrawal",
		KeyElements: []string{
			"withdrawal – possible after three years",
			"withdrawal – takes effect one year after notification",
		},
	},
	{
		Number: "34",
		Title:  "Depositary",
		KeyElements: []string{
			"depositary – un secretary-general",
		},
	},
	{
		Number: "35",
		Title:  "Authentic texts",
		KeyElements: []string{
			"authentic texts – equal authenticity of six official un languages",
		},
	},
}
