package storage

// DefaultPlatforms is the static list of originating units, in pinyin
// order, seeded on first start.
var DefaultPlatforms = []string{
	"安全保卫中心",
	"采购与招投标管理中心",
	"餐饮服务中心",
	"城市交通与物流学院",
	"创意设计学院",
	"大数据与互联网学院",
	"党委宣传部",
	"党委组织部（党委统战部）",
	"党政办公室",
	"分析测试中心",
	"工程物理学院",
	"工会",
	"国际合作与交流部（港澳台工作办公室）",
	"国有资产与实验室管理开发部",
	"后勤保障部",
	"健康与环境工程学院",
	"教学质量督导室",
	"教务部",
	"计划财务部",
	"集成电路与光电芯片学院",
	"科研与校企合作部",
	"马克思主义学院(人文社科学院)",
	"人力资源部",
	"商学院",
	"体育场馆管理中心",
	"体育与艺术学院",
	"图书馆",
	"外国语学院",
	"未来技术学院",
	"网络安全和信息化工作办公室",
	"校团委",
	"校医院",
	"新材料与新能源学院",
	"学生部",
	"学生就业指导中心",
	"药学院",
	"研究生院",
	"战略规划与发展办公室",
	"中德智能制造学院",
}
